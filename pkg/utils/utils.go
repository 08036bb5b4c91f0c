package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateInstallmentAmounts splits principal into weeks installments.
// Every installment is round(principal/weeks, 2); the last one also absorbs the
// rounding remainder so the amounts always sum to principal exactly.
func CalculateInstallmentAmounts(principal decimal.Decimal, weeks int) []decimal.Decimal {
	if weeks <= 0 {
		return nil
	}

	count := decimal.NewFromInt(int64(weeks))
	base := principal.Div(count).Round(2)
	remainder := principal.Sub(base.Mul(count)).Round(2)

	amounts := make([]decimal.Decimal, weeks)
	for i := range amounts {
		amounts[i] = base
	}
	amounts[weeks-1] = base.Add(remainder)

	return amounts
}

// MinimumPrincipal is the smallest principal for which every installment of a
// weeks-long schedule is at least 0.01. The base amount is off from
// principal/weeks by at most 0.005, and the last installment carries that
// error for the other weeks-1 installments.
func MinimumPrincipal(weeks int) decimal.Decimal {
	n := decimal.NewFromInt(int64(weeks))
	perWeek := decimal.RequireFromString("0.005").Mul(n.Sub(decimal.NewFromInt(1))).Add(decimal.RequireFromString("0.01"))
	return n.Mul(perWeek)
}

// CalculateDueDate calculates the due date for a specific week
// Week 1 is due 7 days after start, week 2 after 14 days, etc.
func CalculateDueDate(startDate time.Time, weekNumber int) time.Time {
	return startDate.AddDate(0, 0, weekNumber*7)
}

// DaysUntil returns the whole days from now until due, negative when overdue.
func DaysUntil(due, now time.Time) int {
	return int(due.Sub(now).Hours() / 24)
}

// HasCurrencyPrecision reports whether amount has at most two decimal places.
func HasCurrencyPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}
