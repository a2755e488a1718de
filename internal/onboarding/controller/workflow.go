package controller

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
)

// Action is an administrator decision on a vendor.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Transition returns the status a vendor in current moves to under action.
// In strict mode only pending vendors can be decided; otherwise a decided
// vendor may be decided again.
func Transition(current models.VendorStatus, action Action, strict bool) (models.VendorStatus, error) {
	var next models.VendorStatus
	switch action {
	case ActionApprove:
		next = models.StatusApproved
	case ActionReject:
		next = models.StatusRejected
	default:
		return "", fmt.Errorf("%w: unknown action %q", e.ErrInvalidInput, action)
	}

	if strict && current != models.StatusPending {
		return "", fmt.Errorf("%w: cannot %s a vendor that is %s", e.ErrInvalidTransition, action, current)
	}
	return next, nil
}

// ApprovalUpdate builds the columns written when approving count listings.
// The rejection reason is cleared.
func ApprovalUpdate(approver models.Principal, count int, notes string, at time.Time) models.VendorUpdate {
	earnings := models.ApprovedEarnings(count)
	return models.VendorUpdate{
		Status:               models.StatusApproved,
		ApprovedListingCount: &count,
		ApprovedEarnings:     &earnings,
		ApprovedAt:           &at,
		ApprovedBy:           stringOrNil(approver.UserID),
		ApproverEmail:        stringOrNil(approver.Email),
		AdminNotes:           stringOrNil(notes),
	}
}

// RejectionUpdate builds the columns written when rejecting a vendor. The
// approval figures are cleared; approved_by records who rejected.
func RejectionUpdate(approver models.Principal, reason, notes string) models.VendorUpdate {
	return models.VendorUpdate{
		Status:          models.StatusRejected,
		ApprovedBy:      stringOrNil(approver.UserID),
		ApproverEmail:   stringOrNil(approver.Email),
		RejectionReason: stringOrNil(reason),
		AdminNotes:      stringOrNil(notes),
	}
}

func stringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
