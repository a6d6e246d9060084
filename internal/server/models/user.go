package models

import (
	"time"

	"github.com/dmitrijs2005/securenotes/internal/common"
)

// Profile is an account record. Email and Phone are empty when absent.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsActive reports whether the account may read note content.
func (p *Profile) IsActive() bool {
	return p != nil && p.Status == common.StatusActive
}

// IsAdmin reports whether the account holds an active admin role.
func (p *Profile) IsAdmin() bool {
	return p.IsActive() && p.Role == common.RoleAdmin
}
