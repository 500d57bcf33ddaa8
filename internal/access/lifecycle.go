package access

import (
	"errors"
	"fmt"
	"time"
)

// Status is a seller's verification status. EXPIRED is never stored; it is
// derived at read time from the trial expiry.
type Status string

const (
	StatusNotRequired Status = "not_required"
	StatusRequired    Status = "required"
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// ReasonTrialExpired is returned when an unverified seller's trial window has passed.
const ReasonTrialExpired = "trial_expired"

// ErrInvalidTransition indicates a state change outside the transition table.
var ErrInvalidTransition = errors.New("invalid verification transition")

const urgencyThresholdDays = 5

// Documents is the required submission set: national identity number plus
// three document images.
type Documents struct {
	IdentityNumber string
	FrontImage     string
	BackImage      string
	SelfieImage    string
}

// TrialState carries a seller's verification status and trial window. It is
// part of the seller identity record and mutated only through the transition
// methods below (plus the audited admin override in identity.Service).
type TrialState struct {
	Status                Status
	DashboardAccessExpiry time.Time

	Documents    Documents
	SubmittedAt  time.Time
	DecidedBy    string
	DecidedAt    time.Time
	RejectReason string
}

// Decision is the read-time answer to "may this seller use the dashboard now".
type Decision struct {
	CanAccess     bool
	Reason        string
	DaysRemaining int
	Urgent        bool
	NotifyReview  bool
}

// NewTrialState starts the verification lifecycle at registration time.
func NewTrialState(now time.Time, trialDays int) TrialState {
	return TrialState{
		Status:                StatusRequired,
		DashboardAccessExpiry: now.Add(time.Duration(trialDays) * 24 * time.Hour).UTC(),
	}
}

// SubmitDocuments moves a trial seller into review. Valid only from REQUIRED.
func (s TrialState) SubmitDocuments(docs Documents, now time.Time) (TrialState, error) {
	if s.Status != StatusRequired {
		return s, fmt.Errorf("%w: submit documents from %s", ErrInvalidTransition, s.Status)
	}
	if docs.IdentityNumber == "" || docs.FrontImage == "" || docs.BackImage == "" || docs.SelfieImage == "" {
		return s, errors.New("identity number and all three document images are required")
	}
	s.Status = StatusPending
	s.Documents = docs
	s.SubmittedAt = now.UTC()
	return s, nil
}

// Approve grants permanent dashboard access. Valid only from PENDING.
func (s TrialState) Approve(adminID string, now time.Time) (TrialState, error) {
	if s.Status != StatusPending {
		return s, fmt.Errorf("%w: approve from %s", ErrInvalidTransition, s.Status)
	}
	s.Status = StatusApproved
	s.DecidedBy = adminID
	s.DecidedAt = now.UTC()
	s.RejectReason = ""
	return s, nil
}

// Reject records an admin rejection with a reason. Valid only from PENDING.
func (s TrialState) Reject(adminID, reason string, now time.Time) (TrialState, error) {
	if s.Status != StatusPending {
		return s, fmt.Errorf("%w: reject from %s", ErrInvalidTransition, s.Status)
	}
	if reason == "" {
		return s, errors.New("rejection reason is required")
	}
	s.Status = StatusRejected
	s.DecidedBy = adminID
	s.DecidedAt = now.UTC()
	s.RejectReason = reason
	return s, nil
}

// Evaluate answers the dashboard-access query without mutating state.
// APPROVED is a one-way permanent grant; PENDING and REJECTED keep access
// during review or appeal; only REQUIRED and NOT_REQUIRED are subject to the
// hard trial cutoff.
func Evaluate(s TrialState, now time.Time) Decision {
	switch s.Status {
	case StatusApproved:
		return Decision{CanAccess: true}
	case StatusPending, StatusRejected:
		return Decision{CanAccess: true, NotifyReview: true}
	}

	if now.After(s.DashboardAccessExpiry) {
		return Decision{CanAccess: false, Reason: ReasonTrialExpired}
	}

	days := daysRemaining(s.DashboardAccessExpiry, now)
	return Decision{
		CanAccess:     true,
		DaysRemaining: days,
		Urgent:        days <= urgencyThresholdDays,
	}
}

// daysRemaining rounds up so a partially used day still counts.
func daysRemaining(expiry, now time.Time) int {
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	days := int(remaining / day)
	if remaining%day != 0 {
		days++
	}
	return days
}
