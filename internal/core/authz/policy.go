package authz

import (
	"errors"
	"strings"
)

// Role identifies the custodial role an actor holds in the supply chain.
type Role string

const (
	RoleFarmer      Role = "FARMER"
	RoleProcessor   Role = "PROCESSOR"
	RoleDistributor Role = "DISTRIBUTOR"
	RoleConsumer    Role = "CONSUMER"
)

// ErrUnknownRole is returned when a role string cannot be parsed.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a string into a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(s)) {
	case RoleFarmer:
		return RoleFarmer, nil
	case RoleProcessor:
		return RoleProcessor, nil
	case RoleDistributor:
		return RoleDistributor, nil
	case RoleConsumer:
		return RoleConsumer, nil
	default:
		return "", ErrUnknownRole
	}
}

// Action is a category of operation a role may or may not perform.
type Action string

const (
	// ActionAppendEvent guards appending a trace event of a given type.
	ActionAppendEvent Action = "event:append"
	// ActionTransitionOrder guards advancing an order of a given type.
	ActionTransitionOrder Action = "order:transition"
)

// Policy is the single authorization table for the system. It answers
// whether a role may perform an action on a resource type, so the
// permission matrix lives (and is tested) in exactly one place.
type Policy struct {
	allowed map[Role]map[Action]map[string]bool
}

// NewPolicy builds the default policy.
//
// Event appends follow the custodial matrix: each role may only record
// the facts that physically happen while it holds the batch. Order
// transitions may only be driven by the counterparty role that fulfils
// that order type.
func NewPolicy() *Policy {
	p := &Policy{
		allowed: make(map[Role]map[Action]map[string]bool),
	}

	p.grant(RoleFarmer, ActionAppendEvent,
		"CREATED", "HARVESTED", "QUALITY_CHECK", "PACKAGED", "SHIPPED", "CUSTOM")
	p.grant(RoleProcessor, ActionAppendEvent,
		"RECEIVED", "QUALITY_CHECK", "PROCESSED", "PACKAGED", "SHIPPED", "CUSTOM")
	p.grant(RoleDistributor, ActionAppendEvent,
		"RECEIVED", "QUALITY_CHECK", "DISTRIBUTED", "PACKAGED", "SHIPPED", "SOLD", "CUSTOM")
	p.grant(RoleConsumer, ActionAppendEvent,
		"RECEIVED", "DELIVERED", "FEEDBACK", "ISSUE_REPORTED", "CUSTOM")

	p.grant(RoleProcessor, ActionTransitionOrder, "PROCESSING")
	p.grant(RoleDistributor, ActionTransitionOrder, "DISTRIBUTION")
	// Consumer orders are fulfilled by the distributor through the
	// delivery workflow.
	p.grant(RoleDistributor, ActionTransitionOrder, "CONSUMER")

	return p
}

func (p *Policy) grant(role Role, action Action, resources ...string) {
	byAction, ok := p.allowed[role]
	if !ok {
		byAction = make(map[Action]map[string]bool)
		p.allowed[role] = byAction
	}

	byResource, ok := byAction[action]
	if !ok {
		byResource = make(map[string]bool)
		byAction[action] = byResource
	}

	for _, r := range resources {
		byResource[r] = true
	}
}

// Allowed reports whether role may perform action on the given resource type.
func (p *Policy) Allowed(role Role, action Action, resource string) bool {
	byAction, ok := p.allowed[role]
	if !ok {
		return false
	}
	byResource, ok := byAction[action]
	if !ok {
		return false
	}
	return byResource[resource]
}
