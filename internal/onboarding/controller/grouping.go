package controller

import "github.com/gartstein/onboard/internal/onboarding/models"

// GroupBySalesperson groups vendors by salesperson email in order of first
// appearance. Vendors without an email land in the Unassigned group.
func GroupBySalesperson(vendors []models.Vendor) []models.SalespersonGroup {
	groups := []models.SalespersonGroup{}
	index := map[string]int{}

	for _, v := range vendors {
		email := v.SalespersonEmail
		if email == "" {
			email = models.UnassignedGroup
		}
		i, ok := index[email]
		if !ok {
			i = len(groups)
			index[email] = i
			groups = append(groups, models.SalespersonGroup{SalespersonEmail: email})
		}

		g := &groups[i]
		g.Vendors = append(g.Vendors, v)
		switch v.Status {
		case models.StatusPending:
			g.PendingCount++
		case models.StatusApproved:
			g.ApprovedCount++
		case models.StatusRejected:
			g.RejectedCount++
		}
	}
	return groups
}

// SalespersonEmails returns the distinct non-empty salesperson emails in
// order of first appearance.
func SalespersonEmails(vendors []models.Vendor) []string {
	emails := []string{}
	seen := map[string]struct{}{}
	for _, v := range vendors {
		if v.SalespersonEmail == "" {
			continue
		}
		if _, ok := seen[v.SalespersonEmail]; ok {
			continue
		}
		seen[v.SalespersonEmail] = struct{}{}
		emails = append(emails, v.SalespersonEmail)
	}
	return emails
}
