// Package limits holds the tiered regulatory limits and the transaction
// charge. Everything here is pure: no I/O and no clock.
package limits

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

// DefaultChargeRate is the fraction of a withdrawal taken as a bank charge
var DefaultChargeRate = decimal.RequireFromString("0.02")

// Limits is the ceiling pair applied to one (tier, currency)
type Limits struct {
	DailyLimit decimal.Decimal
	MaxBalance decimal.Decimal
}

type key struct {
	tier     models.Tier
	currency models.Currency
}

// Table maps every (tier, currency) pair to its limits
type Table map[models.Tier]map[models.Currency]Limits

// DefaultTable returns the regulatory limits per tier and currency
func DefaultTable() Table {
	return Table{
		models.Tier1: {
			models.NGN: {DailyLimit: decimal.NewFromInt(50_000), MaxBalance: decimal.NewFromInt(1_000_000)},
			models.USD: {DailyLimit: decimal.NewFromInt(1_000), MaxBalance: decimal.NewFromInt(10_000)},
		},
		models.Tier2: {
			models.NGN: {DailyLimit: decimal.NewFromInt(500_000), MaxBalance: decimal.NewFromInt(5_000_000)},
			models.USD: {DailyLimit: decimal.NewFromInt(10_000), MaxBalance: decimal.NewFromInt(50_000)},
		},
		models.Tier3: {
			models.NGN: {DailyLimit: decimal.NewFromInt(5_000_000), MaxBalance: decimal.NewFromInt(10_000_000)},
			models.USD: {DailyLimit: decimal.NewFromInt(100_000), MaxBalance: decimal.NewFromInt(100_000)},
		},
	}
}

// Policy answers limit and charge questions for the orchestrator
type Policy struct {
	limits     map[key]Limits
	chargeRate decimal.Decimal
}

// NewPolicy validates table and rate. A missing or non-positive pair is a
// configuration error so a bad table stops the process at startup.
func NewPolicy(table Table, chargeRate decimal.Decimal) (*Policy, error) {
	if chargeRate.IsNegative() || chargeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errs.Configuration("charge rate %s must be in [0, 1)", chargeRate)
	}

	p := &Policy{limits: make(map[key]Limits), chargeRate: chargeRate}
	for _, tier := range models.Tiers() {
		for _, currency := range models.Currencies() {
			l, ok := table[tier][currency]
			if !ok {
				return nil, errs.Configuration("no limits configured for %s %s", tier, currency)
			}
			if !l.DailyLimit.IsPositive() || !l.MaxBalance.IsPositive() {
				return nil, errs.Configuration("limits for %s %s must be positive", tier, currency)
			}
			p.limits[key{tier, currency}] = l
		}
	}
	return p, nil
}

// MustDefaultPolicy is the default table with the default rate
func MustDefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultTable(), DefaultChargeRate)
	if err != nil {
		panic(err)
	}
	return p
}

// LimitsFor returns the limits of a (tier, currency) pair. Pairs are
// validated in NewPolicy so the lookup cannot miss for known enums.
func (p *Policy) LimitsFor(tier models.Tier, currency models.Currency) Limits {
	return p.limits[key{tier, currency}]
}

func (p *Policy) ChargeRate() decimal.Decimal {
	return p.chargeRate
}

// ChargeFor is the bank charge for amount, rounded to minor units
func (p *Policy) ChargeFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.chargeRate).Round(2)
}

// Exempt reports whether a tier bypasses every limit
func (p *Policy) Exempt(tier models.Tier) bool {
	return tier == models.Tier3
}

// CheckCredit rejects a credit that would lift the balance above MaxBalance
func (p *Policy) CheckCredit(account *models.Account, amount decimal.Decimal) error {
	if p.Exempt(account.Tier) {
		return nil
	}
	l := p.LimitsFor(account.Tier, account.Currency)
	if account.Balance.Add(amount).GreaterThan(l.MaxBalance) {
		return errs.Forbidden("maximum account balance of %s %s exceeded", l.MaxBalance, account.Currency)
	}
	return nil
}

// CheckDebit rejects a debit the balance cannot cover together with its charge
func (p *Policy) CheckDebit(account *models.Account, amount, charge decimal.Decimal) error {
	if p.Exempt(account.Tier) {
		return nil
	}
	if account.Balance.LessThan(amount.Add(charge)) {
		return errs.Forbidden("insufficient funds")
	}
	return nil
}

// CheckDaily rejects amount when today's principal total would pass DailyLimit
func (p *Policy) CheckDaily(account *models.Account, todaysTotal, amount decimal.Decimal) error {
	if p.Exempt(account.Tier) {
		return nil
	}
	l := p.LimitsFor(account.Tier, account.Currency)
	if todaysTotal.Add(amount).GreaterThan(l.DailyLimit) {
		return errs.Forbidden("daily transaction limit of %s %s exceeded", l.DailyLimit, account.Currency)
	}
	return nil
}

var _ interfaces.LimitPolicy = (*Policy)(nil)
