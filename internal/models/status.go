package models

import "strings"

// Status is the internal lifecycle of a transaction. Provider values are mapped
// onto it by MapProviderStatus and never stored in the status field directly.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// TerminalStatuses are never left once reached.
var TerminalStatuses = []Status{StatusCompleted, StatusFailed, StatusCancelled}

func (s Status) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var providerStatuses = map[string]Status{
	"SUCCESS":       StatusCompleted,
	"SUCCEEDED":     StatusCompleted,
	"FAILED":        StatusFailed,
	"EXPIRED":       StatusFailed,
	"REJECTED":      StatusFailed,
	"PENDING":       StatusPending,
	"PROCESSING":    StatusPending,
	"ACCEPTED":      StatusPending,
	"PRE_INITIATED": StatusPending,
	"INITIATED":     StatusPending,
	"CANCELLED":     StatusCancelled,
	"CANCELED":      StatusCancelled,
}

// MapProviderStatus maps a provider status string to the internal vocabulary.
// Matching is case-insensitive; empty or unknown values map to pending.
func MapProviderStatus(raw string) Status {
	if s, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusPending
}
