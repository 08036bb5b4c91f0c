package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func TestCalculateInstallmentAmounts(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		weeks     int
		expected  []string
	}{
		{
			name:      "remainder goes to last installment",
			principal: "10000",
			weeks:     3,
			expected:  []string{"3333.33", "3333.33", "3333.34"},
		},
		{
			name:      "even split",
			principal: "20000",
			weeks:     4,
			expected:  []string{"5000", "5000", "5000", "5000"},
		},
		{
			name:      "single week",
			principal: "1234.56",
			weeks:     1,
			expected:  []string{"1234.56"},
		},
		{
			name:      "rounding up leaves a negative remainder",
			principal: "2000",
			weeks:     3,
			expected:  []string{"666.67", "666.67", "666.66"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal := decimal.RequireFromString(tt.principal)
			result := CalculateInstallmentAmounts(principal, tt.weeks)

			require.Len(t, result, len(tt.expected))
			for i, expected := range tt.expected {
				assert.True(t, result[i].Equal(decimal.RequireFromString(expected)),
					"installment %d: expected %s, got %s", i+1, expected, result[i])
			}
			assert.True(t, sum(result).Equal(principal))
		})
	}
}

func TestCalculateInstallmentAmounts_SumAlwaysMatchesPrincipal(t *testing.T) {
	principals := []string{"1000", "1000.01", "7777.77", "99999.99", "1000000", "31415.92"}

	for _, p := range principals {
		principal := decimal.RequireFromString(p)
		for weeks := 1; weeks <= 52; weeks++ {
			amounts := CalculateInstallmentAmounts(principal, weeks)
			require.Len(t, amounts, weeks)
			assert.True(t, sum(amounts).Equal(principal), "principal %s over %d weeks", p, weeks)
			for _, a := range amounts {
				assert.True(t, a.IsPositive())
				assert.True(t, HasCurrencyPrecision(a))
			}
		}
	}
}

func TestMinimumPrincipal(t *testing.T) {
	assert.Equal(t, "0.01", MinimumPrincipal(1).StringFixed(2))
	assert.Equal(t, "0.03", MinimumPrincipal(2).StringFixed(2))
	assert.Equal(t, "13.78", MinimumPrincipal(52).StringFixed(2))
}

func TestCalculateInstallmentAmounts_AboveMinimumPrincipal(t *testing.T) {
	cent := decimal.RequireFromString("0.01")

	for weeks := 1; weeks <= 52; weeks++ {
		floor := MinimumPrincipal(weeks)
		require.True(t, HasCurrencyPrecision(floor))

		for step := int64(0); step < 200; step++ {
			principal := floor.Add(cent.Mul(decimal.NewFromInt(step)))
			amounts := CalculateInstallmentAmounts(principal, weeks)

			require.True(t, sum(amounts).Equal(principal), "principal %s over %d weeks", principal, weeks)
			for i, a := range amounts {
				require.False(t, a.LessThan(cent),
					"principal %s over %d weeks: installment %d is %s", principal, weeks, i+1, a)
			}
		}
	}
}

func TestCalculateInstallmentAmounts_BelowMinimumPrincipal(t *testing.T) {
	amounts := CalculateInstallmentAmounts(decimal.NewFromInt(1), 52)

	assert.True(t, sum(amounts).Equal(decimal.NewFromInt(1)))
	assert.True(t, amounts[51].IsNegative())
}

func TestCalculateInstallmentAmounts_InvalidWeeks(t *testing.T) {
	assert.Nil(t, CalculateInstallmentAmounts(decimal.NewFromInt(1000), 0))
}

func TestCalculateDueDate(t *testing.T) {
	baseDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		weekNumber int
		expected   time.Time
	}{
		{name: "first week", weekNumber: 1, expected: baseDate.AddDate(0, 0, 7)},
		{name: "second week", weekNumber: 2, expected: baseDate.AddDate(0, 0, 14)},
		{name: "week 52", weekNumber: 52, expected: baseDate.AddDate(0, 0, 364)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateDueDate(baseDate, tt.weekNumber))
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysUntil(now.AddDate(0, 0, 3), now))
	assert.Equal(t, 0, DaysUntil(now.Add(5*time.Hour), now))
	assert.Equal(t, -2, DaysUntil(now.AddDate(0, 0, -2), now))
}

func TestHasCurrencyPrecision(t *testing.T) {
	assert.True(t, HasCurrencyPrecision(decimal.RequireFromString("10.5")))
	assert.True(t, HasCurrencyPrecision(decimal.RequireFromString("10.50")))
	assert.True(t, HasCurrencyPrecision(decimal.RequireFromString("10.500")))
	assert.False(t, HasCurrencyPrecision(decimal.RequireFromString("10.501")))
}
