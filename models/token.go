package models

import "time"

// AccessToken is the opaque bearer credential used to authenticate API
// calls. It is owned by the auth store: only a successful refresh replaces
// it, and sign-out removes it.
type AccessToken struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresIn int64     `json:"expiresIn"` // seconds
}

// ExpiresAt returns the instant the token stops being valid.
func (t AccessToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpired returns true once the token's time-to-live has elapsed.
func (t AccessToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt())
}

// IsActive is the opposite of IsExpired.
func (t AccessToken) IsActive() bool {
	return !t.IsExpired()
}

// ExpiringIn returns the remaining lifetime, or nil if already expired.
func (t AccessToken) ExpiringIn() *time.Duration {
	remaining := time.Until(t.ExpiresAt())
	if remaining <= 0 {
		return nil
	}
	return &remaining
}
