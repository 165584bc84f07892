package models

import "time"

// ExchangeRate is the quoted unit price for one asset in the local unit
// of account. Rates expire quickly and are refreshed in bulk.
type ExchangeRate struct {
	Asset         string    `json:"asset"`
	Label         string    `json:"label,omitempty"`
	Price         string    `json:"price"`
	Precision     int       `json:"precision,omitempty"`
	UnitOfAccount string    `json:"unit_of_account,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// IsExpired returns true once the quote should no longer be used.
func (r ExchangeRate) IsExpired() bool {
	return !time.Now().Before(r.ExpiresAt)
}
