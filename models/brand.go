package models

// Brand is a merchant that accepts payment through the SDK.
type Brand struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Slug       string      `json:"slug,omitempty"`
	Color      string      `json:"color,omitempty"`
	LogoURL    string      `json:"logo_url,omitempty"`
	Legacy     bool        `json:"legacy_flexcodes,omitempty"`
	Promotions []Promotion `json:"promotions,omitempty"`
}

// Promotion is a merchant discount attached to a brand.
type Promotion struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Amount       string `json:"amount,omitempty"`
	Percentage   string `json:"percentage,omitempty"`
	Restrictions string `json:"restrictions,omitempty"`
}
