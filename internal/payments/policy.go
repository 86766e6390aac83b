package payments

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/baanhub/baanhub-backend/pkg/config"
	"github.com/baanhub/baanhub-backend/pkg/enums"
	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
)

var (
	minorUnitFactor = decimal.NewFromInt(100)
	// Largest value the numeric(12,2) amount column holds.
	maxStorableAmount = decimal.RequireFromString("9999999999.99")
)

// Policy holds the amount rules applied before any provider call.
type Policy struct {
	MinimumAmount    decimal.Decimal
	PackageThreshold decimal.Decimal
	MaximumAmount    decimal.Decimal
	DefaultCurrency  string
}

func PolicyFromConfig(cfg config.PaymentsConfig) Policy {
	return Policy{
		MinimumAmount:    cfg.MinimumAmount,
		PackageThreshold: cfg.PackageThreshold,
		MaximumAmount:    cfg.MaximumAmount,
		DefaultCurrency:  strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency)),
	}
}

// Ceiling is the largest accepted amount, capped at what the store can hold.
func (p Policy) Ceiling() decimal.Decimal {
	if !p.MaximumAmount.IsPositive() || p.MaximumAmount.GreaterThan(maxStorableAmount) {
		return maxStorableAmount
	}
	return p.MaximumAmount
}

// ValidateAmount rejects non-positive amounts and amounts above the ceiling.
func (p Policy) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive number")
	}
	if ceiling := p.Ceiling(); amount.GreaterThan(ceiling) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not exceed "+ceiling.StringFixed(2))
	}
	return nil
}

// EffectiveAmount applies the minimum-amount floor.
func (p Policy) EffectiveAmount(requested decimal.Decimal) decimal.Decimal {
	return decimal.Max(requested, p.MinimumAmount)
}

// RequiredRole maps an amount to the role allowed to pay it: contact reveals
// are customer purchases, anything above the threshold is an agent package.
func (p Policy) RequiredRole(amount decimal.Decimal) enums.UserRole {
	if amount.GreaterThan(p.PackageThreshold) {
		return enums.UserRoleAgent
	}
	return enums.UserRoleCustomer
}

// Currency returns the requested currency upper-cased, or the default.
func (p Policy) Currency(requested string) string {
	if c := strings.ToUpper(strings.TrimSpace(requested)); c != "" {
		return c
	}
	if p.DefaultCurrency != "" {
		return p.DefaultCurrency
	}
	return "THB"
}

// ToMinorUnits converts a major-unit amount to satang/cents, rounding half
// away from zero. Callers validate the amount against the policy ceiling
// first; larger values do not fit an int64.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Round(0).IntPart()
}
