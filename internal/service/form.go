package service

import (
	"strings"

	"calbook/internal/models"
)

// BuildFormDetails derives what gets typed into the scheduling form from the
// intake request. Optional fields are attached only when they carry content.
func BuildFormDetails(email string, guestEmails []string, notes string) models.FormDetails {
	details := models.FormDetails{
		Name:  deriveName(email),
		Email: email,
	}

	guests := make([]string, 0, len(guestEmails))
	for _, guest := range guestEmails {
		if trimmed := strings.TrimSpace(guest); trimmed != "" {
			guests = append(guests, trimmed)
		}
	}
	if len(guests) > 0 {
		details.GuestEmails = guests
	}

	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		details.Notes = trimmed
	}

	return details
}

// deriveName turns the email's local part into a presentable display name:
// segments split on '.', '_' and '-' get their first letter capitalized and
// are joined with spaces ("john.doe" -> "John Doe").
func deriveName(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})

	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}

	return strings.Join(parts, " ")
}
