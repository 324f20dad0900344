package domain

import (
	"strings"
	"time"
)

// User is an application user keyed by the external auth subject id.
type User struct {
	ID                   string    `json:"uid"`
	Email                string    `json:"email"`
	Name                 string    `json:"name,omitempty"`
	Phone                string    `json:"phoneNumber,omitempty"`
	PushToken            string    `json:"-"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	Currency             string    `json:"currency"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// CanReceivePush reports whether a push notification can be addressed to the user.
func (u *User) CanReceivePush() bool {
	return u != nil && u.NotificationsEnabled && strings.TrimSpace(u.PushToken) != ""
}

// HasPushToken is exposed in API payloads instead of the token itself.
func (u *User) HasPushToken() bool {
	return u != nil && u.PushToken != ""
}
