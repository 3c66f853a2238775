package models

import "time"

// PartnershipStatus tracks where a student is in the partnership handshake.
type PartnershipStatus string

const (
	PartnershipNone            PartnershipStatus = "none"
	PartnershipPendingSent     PartnershipStatus = "pending_sent"
	PartnershipPendingReceived PartnershipStatus = "pending_received"
	PartnershipPaired          PartnershipStatus = "paired"
)

// MatchStatus tracks whether a student has a supervisor.
type MatchStatus string

const (
	MatchUnmatched MatchStatus = "unmatched"
	MatchPending   MatchStatus = "pending"
	MatchMatched   MatchStatus = "matched"
)

// Student is a student profile. When PartnershipStatus is paired, PartnerID names a
// student whose PartnerID points back.
type Student struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Department        string            `json:"department"`
	StudentID         string            `json:"studentId"`
	PartnerID         *string           `json:"partnerId"`
	PartnershipStatus PartnershipStatus `json:"partnershipStatus"`
	MatchStatus       MatchStatus       `json:"matchStatus"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Status returns the partnership status, treating an empty value as none.
func (s *Student) Status() PartnershipStatus {
	if s.PartnershipStatus == "" {
		return PartnershipNone
	}
	return s.PartnershipStatus
}

// IsPairedWith reports whether s is paired and points at otherID.
func (s *Student) IsPairedWith(otherID string) bool {
	return s.Status() == PartnershipPaired && s.PartnerID != nil && *s.PartnerID == otherID
}
