package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO code the ledger can hold balances in
type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
)

// Currencies returns every currency the ledger recognises
func Currencies() []Currency {
	return []Currency{NGN, USD}
}

// Valid reports whether c is a recognised currency
func (c Currency) Valid() bool {
	for _, known := range Currencies() {
		if c == known {
			return true
		}
	}
	return false
}

// Tier drives the regulatory limits applied to an account
type Tier string

const (
	Tier1 Tier = "TIER_1"
	Tier2 Tier = "TIER_2"
	Tier3 Tier = "TIER_3"
)

// Tiers returns every known account tier
func Tiers() []Tier {
	return []Tier{Tier1, Tier2, Tier3}
}

type AccountType string

const (
	AccountTypeSavings      AccountType = "savings"
	AccountTypeChecking     AccountType = "checking"
	AccountTypeCurrent      AccountType = "current"
	AccountTypeFixedDeposit AccountType = "fixed_deposit"
	// AccountTypeSystem marks the internal clearing ("house") account of a currency
	AccountTypeSystem AccountType = "system"
)

// Account is a customer or clearing account holding a single-currency balance
type Account struct {
	ID            string
	UserID        string
	AccountNumber string // unique, externally addressable
	AccountName   string
	Balance       decimal.Decimal // never negative for customer accounts
	Currency      Currency
	Tier          Tier
	Type          AccountType
	Version       int64 // bumped on every balance change
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time // soft-delete marker
}

// IsActive reports whether the account has not been soft-deleted
func (a *Account) IsActive() bool {
	return a.DeletedAt == nil
}

// IsSystem reports whether the account is a clearing account
func (a *Account) IsSystem() bool {
	return a.Type == AccountTypeSystem
}
