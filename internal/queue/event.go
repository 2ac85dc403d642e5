// Package queue defines the domain events exchanged over the message broker
// and the consumer that turns them into an audit trail.
package queue

import "time"

// AuditQueue is the durable queue every domain event is routed to.  The
// event kind travels in the AMQP "type" property.
const AuditQueue = "vendorvault.audit"

// Event kinds.
const (
	EventUserRegistered = "user.registered"
	EventVendorChanged  = "vendor.changed"
)

// UserRegisteredEvent is published after a successful registration.  It
// never carries credentials.
type UserRegisteredEvent struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

// VendorChangedEvent is published after a vendor is created, updated or
// deleted.  Action is one of "created", "updated", "deleted".
type VendorChangedEvent struct {
	VendorID string    `json:"vendor_id"`
	Action   string    `json:"action"`
	ActorID  string    `json:"actor_id"`
	At       time.Time `json:"at"`
}
