package adapters

import (
	"context"
	"testing"
	"time"

	"plantain-trace/internal/core/storage"
	"plantain-trace/internal/features/orders/domain"
	"plantain-trace/internal/features/orders/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories lets the same contract tests run against both adapters.
var storeFactories = map[string]func(t *testing.T) ports.OrderStore{
	"memory": func(t *testing.T) ports.OrderStore {
		return NewMemoryOrderStore()
	},
	"redis": func(t *testing.T) ports.OrderStore {
		mr := miniredis.RunT(t)
		kv, err := storage.NewRedisAdapter("redis://" + mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { kv.Close() })
		return NewRedisOrderStore(kv)
	},
}

func sampleOrder(id, buyerID, sellerID string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Order{
		ID:          id,
		Type:        domain.OrderTypeProcessing,
		Status:      domain.OrderStatusPending,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		BatchID:     "B1",
		Quantity:    100,
		TotalAmount: decimal.NewFromInt(250),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestOrderStore_SaveAndGet(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			order := sampleOrder("ord-1", "proc-1", "farmer-1")
			require.NoError(t, store.Save(ctx, order))

			got, err := store.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusPending, got.Status)
			assert.True(t, order.TotalAmount.Equal(got.TotalAmount))

			_, err = store.Get(ctx, "ghost")
			assert.ErrorIs(t, err, ports.ErrOrderNotFound)
		})
	}
}

func TestOrderStore_UpdateInPlace(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			order := sampleOrder("ord-1", "proc-1", "farmer-1")
			require.NoError(t, store.Save(ctx, order))

			order.Status = domain.OrderStatusConfirmed
			require.NoError(t, store.Save(ctx, order))

			got, err := store.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusConfirmed, got.Status)

			// Re-saving must not duplicate index entries.
			orders, err := store.ListBySeller(ctx, "farmer-1")
			require.NoError(t, err)
			assert.Len(t, orders, 1)
		})
	}
}

func TestOrderStore_PartyIndexes(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, sampleOrder("ord-1", "proc-1", "farmer-1")))
			require.NoError(t, store.Save(ctx, sampleOrder("ord-2", "proc-1", "farmer-2")))
			require.NoError(t, store.Save(ctx, sampleOrder("ord-3", "dist-1", "proc-1")))

			asBuyer, err := store.ListByBuyer(ctx, "proc-1")
			require.NoError(t, err)
			assert.Len(t, asBuyer, 2)

			asSeller, err := store.ListBySeller(ctx, "proc-1")
			require.NoError(t, err)
			require.Len(t, asSeller, 1)
			assert.Equal(t, "ord-3", asSeller[0].ID)

			none, err := store.ListBySeller(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestOrderStore_PaymentRefIndex(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			order := sampleOrder("ord-1", "consumer-1", "dist-1")
			order.Type = domain.OrderTypeConsumer
			order.PaymentRef = "pay_abc123"
			require.NoError(t, store.Save(ctx, order))

			got, err := store.GetByPaymentRef(ctx, "pay_abc123")
			require.NoError(t, err)
			assert.Equal(t, "ord-1", got.ID)

			_, err = store.GetByPaymentRef(ctx, "pay_unknown")
			assert.ErrorIs(t, err, ports.ErrOrderNotFound)
		})
	}
}
