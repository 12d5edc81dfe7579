package financing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPeriods(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{0, 0}, {1, 1}, {15, 1}, {30, 1}, {31, 2}, {45, 2}, {60, 2}, {61, 3}, {90, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Periods(tt.days), "days=%d", tt.days)
	}
}

func TestQuote_PerPeriod(t *testing.T) {
	calc, err := NewCalculator(DefaultConfig(ModelPerPeriod))
	require.NoError(t, err)

	q, err := calc.Quote(amount("10000"), date("2026-03-15"), 45)
	require.NoError(t, err)

	assert.Equal(t, 2, q.Periods)
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(300)), "fee %s", q.Fee)
	assert.True(t, q.TotalCost.Equal(decimal.NewFromInt(10300)), "total %s", q.TotalCost)
	assert.Equal(t, "2026-04-29", q.NewDueDate.Format("2006-01-02"))
	assert.Equal(t, "3", q.FeePercent.String())
}

func TestQuote_PerDay(t *testing.T) {
	calc, err := NewCalculator(DefaultConfig(ModelPerDay))
	require.NoError(t, err)

	q, err := calc.Quote(amount("12500.50"), date("2026-12-15"), 30)
	require.NoError(t, err)

	// 12500.50 * 0.0005 * 30 = 187.5075
	assert.Equal(t, "187.51", q.Fee.StringFixed(2))
	assert.Equal(t, "12688.01", q.TotalCost.StringFixed(2))
	assert.Equal(t, "2027-01-14", q.NewDueDate.Format("2006-01-02"))
	assert.Equal(t, "1.5", q.FeePercent.String())
}

func TestQuote_UnresolvedAmountIsZeroQuote(t *testing.T) {
	calc, err := NewCalculator(DefaultConfig(ModelPerPeriod))
	require.NoError(t, err)

	for _, a := range []decimal.NullDecimal{{}, amount("-1")} {
		q, err := calc.Quote(a, date("2026-03-15"), 30)
		require.NoError(t, err)
		assert.True(t, q.Fee.IsZero())
		assert.True(t, q.TotalCost.IsZero())
		assert.True(t, q.NewDueDate.IsZero())
		assert.True(t, q.IsZero())
	}
}

func TestQuote_UnknownDueDateStillPricesFee(t *testing.T) {
	calc, err := NewCalculator(DefaultConfig(ModelPerPeriod))
	require.NoError(t, err)

	q, err := calc.Quote(amount("1000"), time.Time{}, 15)
	require.NoError(t, err)
	assert.Equal(t, "15.00", q.Fee.StringFixed(2))
	assert.True(t, q.NewDueDate.IsZero())
}

func TestQuote_RejectsDaysOutsideDomain(t *testing.T) {
	tests := []struct {
		model Model
		days  int
	}{
		{ModelPerPeriod, 0},
		{ModelPerPeriod, 20},
		{ModelPerPeriod, 105},
		{ModelPerDay, 15},
		{ModelPerDay, 35},
		{ModelPerDay, 100},
	}
	for _, tt := range tests {
		calc, err := NewCalculator(DefaultConfig(tt.model))
		require.NoError(t, err)

		_, err = calc.Quote(amount("100"), date("2026-01-01"), tt.days)
		assert.ErrorIs(t, err, ErrInvalidExtension, "%s %d", tt.model, tt.days)
	}
}

func TestQuote_MonotonicInExtension(t *testing.T) {
	for _, model := range []Model{ModelPerPeriod, ModelPerDay} {
		cfg := DefaultConfig(model)
		calc, err := NewCalculator(cfg)
		require.NoError(t, err)

		prev := decimal.Zero
		for _, days := range cfg.ExtensionOptions() {
			q, err := calc.Quote(amount("9999.99"), date("2026-01-31"), days)
			require.NoError(t, err)
			assert.True(t, q.Fee.GreaterThanOrEqual(prev), "%s: fee dropped at %d days", model, days)
			assert.True(t, q.TotalCost.Equal(decimal.RequireFromString("9999.99").Add(q.Fee)))
			prev = q.Fee
		}
	}
}

func TestConfig(t *testing.T) {
	assert.Equal(t, []int{15, 30, 45, 60, 75, 90}, DefaultConfig(ModelPerPeriod).ExtensionOptions())
	assert.Equal(t, []int{30, 40, 50, 60, 70, 80, 90}, DefaultConfig(ModelPerDay).ExtensionOptions())
	assert.Equal(t, "0.0005", DefaultConfig(ModelPerDay).Rate().String())

	bad := DefaultConfig(ModelPerPeriod)
	bad.Model = "flat"
	_, err := NewCalculator(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad = DefaultConfig(ModelPerDay)
	bad.StepDays = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig(ModelPerDay)
	bad.RatePerDay = decimal.NewFromInt(-1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}
