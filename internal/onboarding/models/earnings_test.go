package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestTotalPrice(t *testing.T) {
	tests := []struct {
		listings int
		want     int
	}{
		{0, 200},
		{1, 220},
		{5, 300},
		{50, 1200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPrice(tt.listings), "listings=%d", tt.listings)
	}
}

func TestApprovedEarnings(t *testing.T) {
	for _, n := range []int{0, 1, 5, 37} {
		assert.Equal(t, 20*n, ApprovedEarnings(n))
	}
}

func TestApprovalRate(t *testing.T) {
	tests := []struct {
		name     string
		approved int
		total    int
		want     int
	}{
		{"no vendors", 0, 0, 0},
		{"one of three", 1, 3, 33},
		{"two of three", 2, 3, 67},
		{"half rounds up", 1, 2, 50},
		{"all approved", 4, 4, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApprovalRate(tt.approved, tt.total))
		})
	}
}

func TestSummarize(t *testing.T) {
	vendors := []Vendor{
		{Status: StatusApproved, ApprovedEarnings: intPtr(100)},
		{Status: StatusPending},
		{Status: StatusRejected},
		{Status: StatusApproved, ApprovedEarnings: intPtr(40)},
	}

	s := Summarize(vendors)

	assert.Equal(t, 4, s.TotalVendors)
	assert.Equal(t, 1, s.PendingCount)
	assert.Equal(t, 2, s.ApprovedCount)
	assert.Equal(t, 1, s.RejectedCount)
	assert.Equal(t, 50, s.ApprovalRate)
	assert.Equal(t, 140, s.TotalEarnings)
	assert.Equal(t, SourceComputed, s.EarningsSource)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalVendors)
	assert.Zero(t, s.ApprovalRate)
	assert.Zero(t, s.TotalEarnings)
}

func TestHomeFor(t *testing.T) {
	assert.Equal(t, ScreenAdmin, HomeFor(RoleAdmin))
	assert.Equal(t, ScreenMain, HomeFor(RoleSalesperson))
	assert.Equal(t, ScreenMain, HomeFor(RoleUser))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleSalesperson.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
}
