// Package financing prices FortusFlex payment extensions: the supplier is paid
// now and the buyer pays the invoice later against a fee.
//
// Two pricing models exist and the active one is a deployment choice:
//
//	per_period: fee = amount * ratePerPeriod * ceil(days / 30)   (default rate 0.015, 15-90 days step 15)
//	per_day:    fee = amount * ratePerDay * days                  (default rate 0.0005, 30-90 days step 10)
//
// The new due date is the original due date plus the extension in calendar days.
// Money is rounded to two decimals.
package financing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Model selects how the extension fee is computed.
type Model string

const (
	ModelPerPeriod Model = "per_period"
	ModelPerDay    Model = "per_day"
)

// PeriodDays is the length of one pricing period.
const PeriodDays = 30

var (
	// ErrInvalidExtension is returned for extension lengths outside the configured range or step.
	ErrInvalidExtension = errors.New("invalid extension length")

	// ErrInvalidConfig is returned when the pricing configuration cannot produce quotes.
	ErrInvalidConfig = errors.New("invalid pricing configuration")
)

var hundred = decimal.NewFromInt(100)

// Config is the pricing configuration of a deployment.
type Config struct {
	Model         Model
	RatePerPeriod decimal.Decimal
	RatePerDay    decimal.Decimal

	// MinDays, MaxDays and StepDays describe the allowed extension lengths:
	// MinDays, MinDays+StepDays, ... up to MaxDays.
	MinDays  int
	MaxDays  int
	StepDays int
}

// DefaultConfig returns the product defaults for a pricing model.
func DefaultConfig(model Model) Config {
	cfg := Config{
		Model:         model,
		RatePerPeriod: decimal.RequireFromString("0.015"),
		RatePerDay:    decimal.RequireFromString("0.0005"),
		MinDays:       15,
		MaxDays:       90,
		StepDays:      15,
	}
	if model == ModelPerDay {
		cfg.MinDays = 30
		cfg.StepDays = 10
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Model {
	case ModelPerPeriod:
		if c.RatePerPeriod.IsNegative() {
			return fmt.Errorf("%w: negative rate per period %s", ErrInvalidConfig, c.RatePerPeriod)
		}
	case ModelPerDay:
		if c.RatePerDay.IsNegative() {
			return fmt.Errorf("%w: negative rate per day %s", ErrInvalidConfig, c.RatePerDay)
		}
	default:
		return fmt.Errorf("%w: unknown pricing model %q", ErrInvalidConfig, c.Model)
	}
	if c.MinDays <= 0 || c.StepDays <= 0 || c.MaxDays < c.MinDays {
		return fmt.Errorf("%w: extension range %d-%d step %d", ErrInvalidConfig, c.MinDays, c.MaxDays, c.StepDays)
	}
	return nil
}

// Rate returns the rate of the active model.
func (c Config) Rate() decimal.Decimal {
	if c.Model == ModelPerDay {
		return c.RatePerDay
	}
	return c.RatePerPeriod
}

// ExtensionOptions lists every allowed extension length in ascending order.
func (c Config) ExtensionOptions() []int {
	var days []int
	for d := c.MinDays; d <= c.MaxDays; d += c.StepDays {
		days = append(days, d)
	}
	return days
}

// Allows reports whether days is an allowed extension length.
func (c Config) Allows(days int) bool {
	return days >= c.MinDays && days <= c.MaxDays && (days-c.MinDays)%c.StepDays == 0
}

// Quote is a priced extension. It is a value and is never persisted.
type Quote struct {
	Model         Model
	ExtensionDays int
	Periods       int
	Fee           decimal.Decimal
	TotalCost     decimal.Decimal

	// NewDueDate is zero when the amount or the original due date is unknown.
	NewDueDate time.Time

	// FeePercent is the fee as a percentage of the amount.
	FeePercent decimal.Decimal
}

// IsZero reports whether the quote is the zero quote returned for unknown amounts.
func (q Quote) IsZero() bool {
	return q.Fee.IsZero() && q.TotalCost.IsZero() && q.NewDueDate.IsZero()
}

// Periods returns the number of started 30 day periods in days.
func Periods(days int) int {
	if days <= 0 {
		return 0
	}
	return (days + PeriodDays - 1) / PeriodDays
}

// Calculator computes financing quotes. It is stateless and safe for concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator for a validated configuration.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the active pricing configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Quote prices an extension of extensionDays for an invoice.
//
// An unknown or negative amount yields the zero quote without error.
// A zero dueDate leaves NewDueDate zero while fee and total are still computed.
func (c *Calculator) Quote(amount decimal.NullDecimal, dueDate time.Time, extensionDays int) (Quote, error) {
	if !c.cfg.Allows(extensionDays) {
		return Quote{}, fmt.Errorf("%w: %d days, allowed %d-%d in steps of %d",
			ErrInvalidExtension, extensionDays, c.cfg.MinDays, c.cfg.MaxDays, c.cfg.StepDays)
	}

	q := Quote{
		Model:         c.cfg.Model,
		ExtensionDays: extensionDays,
		Periods:       Periods(extensionDays),
		Fee:           decimal.Zero,
		TotalCost:     decimal.Zero,
		FeePercent:    c.feeFactor(extensionDays).Mul(hundred).Round(2),
	}

	if !amount.Valid || amount.Decimal.IsNegative() {
		return q, nil
	}

	q.Fee = amount.Decimal.Mul(c.feeFactor(extensionDays)).Round(2)
	q.TotalCost = amount.Decimal.Add(q.Fee)
	if !dueDate.IsZero() {
		q.NewDueDate = dueDate.AddDate(0, 0, extensionDays)
	}

	return q, nil
}

// feeFactor is the fraction of the amount charged for an extension.
func (c *Calculator) feeFactor(days int) decimal.Decimal {
	if c.cfg.Model == ModelPerDay {
		return c.cfg.RatePerDay.Mul(decimal.NewFromInt(int64(days)))
	}
	return c.cfg.RatePerPeriod.Mul(decimal.NewFromInt(int64(Periods(days))))
}
