package models

import (
	"math"
)

const (
	// BaseFee is the fixed part of a vendor's total price.
	BaseFee = 200
	// PerListingFee is charged per submitted listing and earned per approved listing.
	PerListingFee = 20
)

// TotalPrice is the price quoted for a vendor with n listings.
func TotalPrice(listings int) int {
	return BaseFee + PerListingFee*listings
}

// ApprovedEarnings is what a salesperson earns for n approved listings.
func ApprovedEarnings(listings int) int {
	return PerListingFee * listings
}

// SalespersonEarnings is a row of the salesperson_earnings aggregate view.
type SalespersonEarnings struct {
	SalespersonID string `gorm:"primaryKey"`
	PendingCount  int
	ApprovedCount int
	RejectedCount int
	TotalEarnings int
}

// TableName binds the aggregate to its view.
func (SalespersonEarnings) TableName() string {
	return "salesperson_earnings"
}

// EarningsSource tells where a summary's total earnings came from.
type EarningsSource string

const (
	SourceAggregate EarningsSource = "aggregate"
	SourceComputed  EarningsSource = "computed"
)

// EarningsSummary is the dashboard figure set for one salesperson.
type EarningsSummary struct {
	TotalVendors   int            `json:"total_vendors"`
	PendingCount   int            `json:"pending_count"`
	ApprovedCount  int            `json:"approved_count"`
	RejectedCount  int            `json:"rejected_count"`
	ApprovalRate   int            `json:"approval_rate"`
	TotalEarnings  int            `json:"total_earnings"`
	EarningsSource EarningsSource `json:"earnings_source"`
}

// Summarize counts vendors per status and sums approved earnings. The
// approval rate is the rounded percentage of approved vendors, 0 for none.
func Summarize(vendors []Vendor) EarningsSummary {
	var s EarningsSummary
	for _, v := range vendors {
		s.TotalVendors++
		switch v.Status {
		case StatusPending:
			s.PendingCount++
		case StatusApproved:
			s.ApprovedCount++
			if v.ApprovedEarnings != nil {
				s.TotalEarnings += *v.ApprovedEarnings
			}
		case StatusRejected:
			s.RejectedCount++
		}
	}
	s.ApprovalRate = ApprovalRate(s.ApprovedCount, s.TotalVendors)
	s.EarningsSource = SourceComputed
	return s
}

// ApprovalRate returns round(100 * approved / total), or 0 when total is 0.
func ApprovalRate(approved, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(approved) * 100 / float64(total)))
}

// SalespersonGroup is the admin view of one salesperson's vendors.
type SalespersonGroup struct {
	SalespersonEmail string   `json:"salesperson_email"`
	Vendors          []Vendor `json:"vendors"`
	PendingCount     int      `json:"pending_count"`
	ApprovedCount    int      `json:"approved_count"`
	RejectedCount    int      `json:"rejected_count"`
}

// UnassignedGroup labels vendors without a salesperson email.
const UnassignedGroup = "Unassigned"
