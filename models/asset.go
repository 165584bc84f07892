package models

// Asset is a spendable cryptocurrency known to the server.
type Asset struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Chain         string `json:"chain,omitempty"`
	IconURL       string `json:"icon_url,omitempty"`
	UnitOfAccount string `json:"unit_of_account,omitempty"`
	Livemode      bool   `json:"livemode"`
}

// AvailableAsset pairs an asset with the balance a wallet reported for it.
type AvailableAsset struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
	Symbol  string `json:"symbol,omitempty"`
}

// AppAccount is a wallet account the host application registers with the
// SDK. The account ID is hashed by the caller before it reaches us.
type AppAccount struct {
	AccountID       string           `json:"account_id"`
	DisplayName     string           `json:"display_name,omitempty"`
	AvailableAssets []AvailableAsset `json:"available_assets"`
}
