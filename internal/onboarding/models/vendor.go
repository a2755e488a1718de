// Package models defines the domain models of the onboarding service:
// vendors and their categories, user roles, earnings aggregates and the
// authenticated principal. The persistent types carry GORM tags and map onto
// the tables of the backing store.
package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorStatus is the review state of a vendor application.
type VendorStatus string

const (
	StatusPending  VendorStatus = "pending"
	StatusApproved VendorStatus = "approved"
	StatusRejected VendorStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s VendorStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Vendor is a business submitted for onboarding by a salesperson.
//
// The approval fields are only populated while the vendor is approved and the
// rejection reason only while it is rejected. Switching between the two
// terminal states clears the fields of the other one.
type Vendor struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string       `gorm:"column:v_name;not null" json:"v_name"`
	CategoryID       *uuid.UUID   `gorm:"column:v_type;type:uuid" json:"v_type"`
	Category         *Category    `gorm:"foreignKey:CategoryID" json:"categories,omitempty"`
	PhoneNumber      string       `gorm:"column:v_phonenumber;size:10;uniqueIndex;not null" json:"v_phonenumber"`
	Address          string       `gorm:"column:v_address;not null" json:"v_address"`
	ListingCount     int          `gorm:"column:v_listing_count;not null;check:v_listing_count >= 0" json:"v_listing_count"`
	TotalPrice       int          `gorm:"not null" json:"total_price"`
	VerifiedPhotoURL *string      `json:"verified_photo_url"`
	BusinessPhotoURL *string      `json:"business_photo_url"`
	SalespersonID    string       `gorm:"index;not null" json:"salesperson_id"`
	SalespersonEmail string       `json:"salesperson_email"`
	Status           VendorStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	CreatedAt        time.Time    `gorm:"index" json:"created_at"`

	ApprovedListingCount *int       `json:"approved_listing_count"`
	ApprovedEarnings     *int       `json:"approved_earnings"`
	ApprovedAt           *time.Time `json:"approved_at"`
	ApprovedBy           *string    `json:"approved_by"`
	ApproverEmail        *string    `json:"approver_email"`
	RejectionReason      *string    `json:"rejection_reason"`
	AdminNotes           *string    `json:"admin_notes"`
}

// CategoryName returns the joined category name or an empty string.
func (v *Vendor) CategoryName() string {
	if v.Category == nil {
		return ""
	}
	return v.Category.Name
}

// NewVendor carries the fields a salesperson fills in when adding a vendor.
type NewVendor struct {
	Name         string `json:"v_name" validate:"notblank"`
	CategoryID   string `json:"v_type" validate:"required,uuid"`
	PhoneNumber  string `json:"v_phonenumber" validate:"phone10"`
	Address      string `json:"v_address" validate:"notblank"`
	ListingCount int    `json:"v_listing_count" validate:"gte=0"`
}

// Photo is an uploaded image attached to a new vendor.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// PhotoKind selects the bucket a photo belongs to.
type PhotoKind string

const (
	VerifiedPhoto PhotoKind = "verified"
	BusinessPhoto PhotoKind = "business"
)

// Label is the human readable name used in messages.
func (k PhotoKind) Label() string {
	if k == VerifiedPhoto {
		return "Verified photo"
	}
	return "Business photo"
}

// VendorUpdate is the set of columns written by a decision. Nil pointers are
// persisted as NULL.
type VendorUpdate struct {
	Status               VendorStatus
	ApprovedListingCount *int
	ApprovedEarnings     *int
	ApprovedAt           *time.Time
	ApprovedBy           *string
	ApproverEmail        *string
	RejectionReason      *string
	AdminNotes           *string
}

// Columns returns the update as a column map suitable for a full overwrite.
func (u VendorUpdate) Columns() map[string]interface{} {
	return map[string]interface{}{
		"status":                 u.Status,
		"approved_listing_count": u.ApprovedListingCount,
		"approved_earnings":      u.ApprovedEarnings,
		"approved_at":            u.ApprovedAt,
		"approved_by":            u.ApprovedBy,
		"approver_email":         u.ApproverEmail,
		"rejection_reason":       u.RejectionReason,
		"admin_notes":            u.AdminNotes,
	}
}

// VendorFilter narrows vendor listings. Empty fields match everything.
type VendorFilter struct {
	SalespersonID    string
	SalespersonEmail string
	Status           VendorStatus
}
