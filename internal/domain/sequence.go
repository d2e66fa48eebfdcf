package domain

import "time"

// SequenceInfo is the slice of a content sequence the delivery engine needs:
// identity, tenant ownership, and publish state. Authoring lives elsewhere.
type SequenceInfo struct {
	ID          string
	AgencyID    string
	Title       string
	Published   bool
	PublishedAt *time.Time
}

// Recipient is a notification target resolved for a sequence.
type Recipient struct {
	UserID string
	Email  string
	Name   string
}
