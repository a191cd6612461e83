package finance

import (
	"fmt"
	"time"

	"github.com/agency/backend/internal/domain/shared"
	"github.com/agency/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Installment is one parcel of a split amount
type Installment struct {
	Index   int
	Amount  decimal.Decimal
	DueDate time.Time
}

// ComputeInstallments splits totalAmount into installmentCount parcels due
// on consecutive months from startDate. Parcels 2..n carry floor(total/n)
// in minor units and parcel 1 absorbs the remainder, so the sum is exact.
func ComputeInstallments(totalAmount decimal.Decimal, installmentCount int, startDate time.Time) ([]Installment, error) {
	if installmentCount < 1 {
		return nil, shared.NewValidationError("Installment count must be at least 1")
	}
	if !totalAmount.IsPositive() {
		return nil, shared.NewValidationError("Total amount must be positive")
	}

	parts, err := valueobject.NewMoneyBRL(totalAmount).Split(installmentCount)
	if err != nil {
		return nil, shared.NewValidationError(err.Error())
	}

	installments := make([]Installment, installmentCount)
	for i, part := range parts {
		installments[i] = Installment{
			Index:   i + 1,
			Amount:  part.Amount(),
			DueDate: valueobject.AddMonthsClamped(startDate, i),
		}
	}
	return installments, nil
}

// ParcelPosition is the display position of a month inside a contract
type ParcelPosition struct {
	Current int
	Total   int
	Bounded bool
}

// Label renders the position as "N/M", or "mês N" for open-ended contracts
func (p ParcelPosition) Label() string {
	if !p.Bounded {
		return fmt.Sprintf("mês %d", p.Current)
	}
	return fmt.Sprintf("%d/%d", p.Current, p.Total)
}

// ComputeContractParcelPosition derives which month of a contract
// transactionDate falls in. The result is monotonic in transactionDate and
// clamped to [1, Total] when the contract has an end date.
func ComputeContractParcelPosition(contractStart time.Time, contractEnd *time.Time, transactionDate time.Time) ParcelPosition {
	elapsed := valueobject.MonthsBetween(contractStart, transactionDate) + 1
	if contractEnd == nil {
		return ParcelPosition{Current: max(1, elapsed)}
	}

	total := max(1, valueobject.MonthsBetween(contractStart, *contractEnd)+1)
	return ParcelPosition{
		Current: max(1, min(elapsed, total)),
		Total:   total,
		Bounded: true,
	}
}
