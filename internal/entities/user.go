package entities

import "time"

// User is an end user on the channel, identified by (tenant, phone number).
// Created on first contact.
type User struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Known reports whether a display name has ever been captured for the user.
// Flow triggers and welcome messages branch on this.
func (u *User) Known() bool {
	return u.Name != ""
}

// DisplayName returns the captured name or the generic fallback used in
// message templates.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "amigo"
	}
	return u.Name
}
