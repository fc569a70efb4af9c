package domain

import "time"

// AssetClass groups symbols by the upstream that can price them.
type AssetClass string

const (
	AssetStock  AssetClass = "STOCK"
	AssetCrypto AssetClass = "CRYPTO"
	AssetGold   AssetClass = "GOLD"
)

// ConversationContext is the last asset a user asked about.
type ConversationContext struct {
	UserID     string
	Symbol     string
	AssetClass AssetClass
	UpdatedAt  time.Time
}
