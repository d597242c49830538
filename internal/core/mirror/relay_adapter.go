package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"plantain-trace/internal/core/httpclient"
)

// RelayAdapter implements Mirror against an HTTP relay service that writes
// entries to the public ledger on our behalf. The relay owns the on-chain
// keys and contract details; we only exchange logical entries.
type RelayAdapter struct {
	baseURL string
	client  *http.Client
}

// NewRelayAdapter creates a RelayAdapter for the given relay base URL.
func NewRelayAdapter(baseURL string, timeout time.Duration) *RelayAdapter {
	return &RelayAdapter{
		baseURL: baseURL,
		client:  httpclient.NewClient(timeout),
	}
}

// relayResponse is the relay's acknowledgement payload.
type relayResponse struct {
	TxRef      string    `json:"tx_ref"`
	URL        string    `json:"url"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MirrorEvent records a trace event via the relay.
func (r *RelayAdapter) MirrorEvent(ctx context.Context, entry EventEntry) (*Record, error) {
	return r.post(ctx, r.baseURL+"/v1/events", entry)
}

// MirrorOrderTransition records an order transition via the relay.
func (r *RelayAdapter) MirrorOrderTransition(ctx context.Context, entry OrderEntry) (*Record, error) {
	return r.post(ctx, r.baseURL+"/v1/orders", entry)
}

func (r *RelayAdapter) post(ctx context.Context, url string, payload interface{}) (*Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mirror entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: relay returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var ack relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}

	rec := &Record{
		TxRef:      ack.TxRef,
		URL:        ack.URL,
		RecordedAt: ack.RecordedAt,
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	return rec, nil
}
