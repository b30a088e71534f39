/*
params.go - Engine configuration with defaults and fail-fast validation

PURPOSE:
  Every engine takes a params struct. All numeric knobs have defaults;
  callers override any subset. Validate() runs before any computation and
  returns a ConfigurationError for the first violation found: partial
  computation with invalid config is never allowed.

VALIDATION:
  Single-field domains are declared as go-playground/validator struct
  tags; cross-field rules (multiplier ordering, band threshold ordering,
  window orientation) are explicit checks. Both surface as
  ConfigurationError wrapping ErrInvalidConfiguration.

DEFAULTS:
  The numeric defaults (weights, multipliers, tolerance, band thresholds)
  are configuration, not law; stakeholders own the values, the engine only
  enforces their domains.

SEE ALSO:
  - health.go, promo.go, trend.go, priceindex.go: Consumers
  - errors.go: ConfigurationError
*/
package metrics

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// configErr converts the first validator violation into a ConfigurationError.
func configErr(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{
			Param:  strings.ToLower(fe.Field()),
			Reason: "violates '" + fe.Tag() + "'",
		}
	}
	return &ConfigurationError{Param: "params", Reason: err.Error()}
}

func validateWindow(name string, w Window, requireBounded bool) error {
	if requireBounded && !w.Bounded() {
		return &ConfigurationError{Param: name, Reason: "must have both from and to"}
	}
	if w.Bounded() && w.To.Before(w.From) {
		return &ConfigurationError{Param: name, Reason: "ends before it starts"}
	}
	return nil
}

// =============================================================================
// HEALTH ENGINE PARAMS
// =============================================================================

// HealthParams configures the health engine. Weights are the maximum
// deduction each signal can take from the 100-point score.
type HealthParams struct {
	// Scope limits which sales facts are considered. Unbounded = all.
	Scope Window

	MissingRRPWeight    float64 `validate:"gte=0"`
	ExtremePriceWeight  float64 `validate:"gte=0"`
	NegativeQtyWeight   float64 `validate:"gte=0"`
	SupplierDriftWeight float64 `validate:"gte=0"`

	// A unit price outside [low*rrp, high*rrp] counts as extreme.
	ExtremePriceMultiplierLow  float64 `validate:"gt=0"`
	ExtremePriceMultiplierHigh float64 `validate:"gt=0"`

	// DriftTolerancePct is the allowed relative change of a supplier's
	// mean unit price versus its trailing baseline, in percent.
	DriftTolerancePct float64 `validate:"gte=0"`
}

// DefaultHealthParams returns the stock weights and thresholds.
func DefaultHealthParams() HealthParams {
	return HealthParams{
		MissingRRPWeight:           20,
		ExtremePriceWeight:         20,
		NegativeQtyWeight:          20,
		SupplierDriftWeight:        10,
		ExtremePriceMultiplierLow:  0.1,
		ExtremePriceMultiplierHigh: 10,
		DriftTolerancePct:          15,
	}
}

// Validate checks all params before any computation.
func (p HealthParams) Validate() error {
	if err := configErr(validate.Struct(p)); err != nil {
		return err
	}
	if p.ExtremePriceMultiplierLow >= p.ExtremePriceMultiplierHigh {
		return &ConfigurationError{
			Param:  "extreme_price_multiplier_low",
			Reason: "must be below extreme_price_multiplier_high",
		}
	}
	return validateWindow("scope", p.Scope, false)
}

// =============================================================================
// PROMOTION ENGINE PARAMS
// =============================================================================

// PromoParams identifies one promotion run: its id and the baseline vs
// promotional windows to compare.
type PromoParams struct {
	RunID    PromoRunID `validate:"required"`
	Baseline Window
	Promo    Window
}

// Validate checks the run id and both windows.
func (p PromoParams) Validate() error {
	if err := configErr(validate.Struct(p)); err != nil {
		return err
	}
	if err := validateWindow("baseline", p.Baseline, true); err != nil {
		return err
	}
	return validateWindow("promo", p.Promo, true)
}

// =============================================================================
// TREND AGGREGATOR PARAMS
// =============================================================================

// TrendParams scopes the longitudinal promo view. Empty filters mean all.
type TrendParams struct {
	SKUs      []SKUID
	Suppliers []SupplierID

	// SupplierRollup adds supplier-level rows: promo-volume-weighted means
	// of uplift and coverage, null-uplift runs excluded.
	SupplierRollup bool
}

// Validate is trivially true today; kept for contract symmetry.
func (p TrendParams) Validate() error { return nil }

// =============================================================================
// PRICE INDEX ENGINE PARAMS
// =============================================================================

// PriceIndexParams configures the competitor price index.
type PriceIndexParams struct {
	// Scope limits which observations and reference sales are matched.
	Scope Window

	// Band thresholds: index above PremiumAbove is PREMIUM, below
	// DiscountedBelow is DISCOUNTED, in between (inclusive) NEAR_MARKET.
	PremiumAbove    float64 `validate:"gt=0"`
	DiscountedBelow float64 `validate:"gt=0"`
}

// DefaultPriceIndexParams returns the stock band thresholds.
func DefaultPriceIndexParams() PriceIndexParams {
	return PriceIndexParams{
		PremiumAbove:    105,
		DiscountedBelow: 95,
	}
}

// Validate checks threshold ordering and the scope window.
func (p PriceIndexParams) Validate() error {
	if err := configErr(validate.Struct(p)); err != nil {
		return err
	}
	if p.DiscountedBelow > p.PremiumAbove {
		return &ConfigurationError{
			Param:  "discounted_below",
			Reason: "must not exceed premium_above",
		}
	}
	return validateWindow("scope", p.Scope, false)
}
