package amortization

import (
	"time"

	"shg-finance/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// ScheduledInstallment is one obligation in a repayment schedule.
type ScheduledInstallment struct {
	Number  int
	DueDate time.Time
	Amount  decimal.Decimal
}

// GenerateSchedule builds tenureMonths installments due one calendar month apart, the first one month
// after start. Each installment is min(emi, remaining); the last one takes whatever is left so the
// amounts always sum to the disbursed amount.
func GenerateSchedule(disbursed, emi decimal.Decimal, tenureMonths int, start time.Time) ([]ScheduledInstallment, error) {
	if tenureMonths <= 0 {
		return nil, apperrors.Validation("tenure must be at least 1 month, got %d", tenureMonths)
	}
	if disbursed.IsNegative() {
		return nil, apperrors.Validation("disbursed amount must not be negative, got %s", disbursed)
	}
	if emi.IsNegative() {
		return nil, apperrors.Validation("emi must not be negative, got %s", emi)
	}

	schedule := make([]ScheduledInstallment, 0, tenureMonths)
	remaining := disbursed
	for i := 1; i <= tenureMonths; i++ {
		amount := decimal.Min(emi, remaining)
		if i == tenureMonths {
			amount = remaining
		}
		remaining = remaining.Sub(amount)

		schedule = append(schedule, ScheduledInstallment{
			Number:  i,
			DueDate: AddMonths(start, i),
			Amount:  amount,
		})
	}
	return schedule, nil
}

// AddMonths moves t forward by n calendar months, clamping the day to the end of the target month
// so that a loan disbursed on the 31st falls due on the last day of shorter months.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
