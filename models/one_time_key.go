package models

import "time"

// OneTimeKey is the secret material used to derive flexcodes for one
// asset. Keys are replaced wholesale on each sync; an expired key must not
// be used to derive codes.
type OneTimeKey struct {
	ID               string    `json:"id"`
	Asset            string    `json:"asset"`
	ExpiresAt        time.Time `json:"expires_at"`
	Length           int       `json:"length"`
	Livemode         bool      `json:"livemode"`
	Prefix           string    `json:"prefix"`
	Secret           string    `json:"secret"`             // base32
	ServerTimeOffset int64     `json:"server_time_offset"` // seconds, local clock minus server clock
}

// IsExpired returns true once the key's rotation deadline has passed.
func (k OneTimeKey) IsExpired() bool {
	return !time.Now().Before(k.ExpiresAt)
}
