package model

import (
	"fmt"
	"time"
)

// DisputeStatus is the lifecycle state of a dispute.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "OPEN"
	DisputeResolved DisputeStatus = "RESOLVED"
	DisputeClosed   DisputeStatus = "CLOSED"
)

// ParseDisputeStatus validates a wire value against the known statuses.
func ParseDisputeStatus(v string) (DisputeStatus, error) {
	switch s := DisputeStatus(v); s {
	case DisputeOpen, DisputeResolved, DisputeClosed:
		return s, nil
	}
	return "", fmt.Errorf("unknown dispute status %q", v)
}

// DisputePriority orders disputes for triage.
type DisputePriority string

const (
	PriorityLow    DisputePriority = "LOW"
	PriorityMedium DisputePriority = "MEDIUM"
	PriorityHigh   DisputePriority = "HIGH"
	PriorityUrgent DisputePriority = "URGENT"
)

// ParseDisputePriority validates a wire value against the known priorities.
func ParseDisputePriority(v string) (DisputePriority, error) {
	switch p := DisputePriority(v); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown dispute priority %q", v)
}

// RelatedType tags what kind of record a dispute refers to.
type RelatedType string

const (
	RelatedBreakdown RelatedType = "BREAKDOWN"
	RelatedOrder     RelatedType = "ORDER"
)

// ParseRelatedType validates a wire value against the known related types.
func ParseRelatedType(v string) (RelatedType, error) {
	switch t := RelatedType(v); t {
	case RelatedBreakdown, RelatedOrder:
		return t, nil
	}
	return "", fmt.Errorf("unknown related type %q", v)
}

// Dispute is an escalation raised against a breakdown or order.
// Resolution is non-empty exactly when the status is RESOLVED or CLOSED.
type Dispute struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	RelatedID   string          `json:"related_id"`
	RelatedType RelatedType     `json:"related_type"`
	RaisedBy    string          `json:"raised_by"`
	Reason      string          `json:"reason"`
	Description string          `json:"description,omitempty"`
	Priority    DisputePriority `json:"priority"`
	Status      DisputeStatus   `json:"status"`
	Resolution  string          `json:"resolution,omitempty"`
	ResolvedBy  string          `json:"resolved_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}
