package services

import (
	"time"

	"github.com/chainfolio/chainfolio-go/internal/models"
	"github.com/chainfolio/chainfolio-go/internal/utils"
	"github.com/shopspring/decimal"
)

// Decimal division precision is fixed once for the whole module so cost
// basis math rounds identically everywhere.
func init() {
	decimal.DivisionPrecision = 18
}

// TaxLot is a discrete acquisition record tracked for cost-basis purposes.
// Quantity is drawn down in place as the lot is consumed.
type TaxLot struct {
	Quantity         decimal.Decimal `json:"quantity"`
	CostBasisPerUnit decimal.Decimal `json:"cost_basis_per_unit"`
	AcquiredAt       time.Time       `json:"acquired_at"`
}

// CostBasisLedger tracks acquisition lots for one (wallet, asset) key and
// realizes P&L on disposal using strict FIFO matching: the earliest lot is
// always consumed first, partially if needed.
//
// A ledger is not safe for concurrent use. Callers keep one ledger per
// (wallet, asset) key under single-writer discipline.
type CostBasisLedger struct {
	lots []TaxLot
	// head indexes the oldest live lot; consumed lots are skipped rather
	// than shifted out, and the slice is compacted periodically so head
	// removal stays O(1) amortized under high disposal volume.
	head int
}

// NewCostBasisLedger creates an empty ledger.
func NewCostBasisLedger() *CostBasisLedger {
	return &CostBasisLedger{}
}

// AddAcquisition appends a new tax lot at the tail of the ledger.
func (l *CostBasisLedger) AddAcquisition(quantity, pricePerUnit decimal.Decimal, acquiredAt time.Time) error {
	if quantity.Sign() <= 0 {
		return utils.NewValidationErrorf("acquisition quantity must be positive, got %s", quantity.String())
	}
	if pricePerUnit.Sign() < 0 {
		return utils.NewValidationErrorf("acquisition price must not be negative, got %s", pricePerUnit.String())
	}

	l.lots = append(l.lots, TaxLot{
		Quantity:         quantity,
		CostBasisPerUnit: pricePerUnit,
		AcquiredAt:       acquiredAt,
	})
	return nil
}

// Dispose consumes lots from the head of the ledger and returns the realized
// P&L for the disposal, priced at salePrice. Total availability is validated
// before any lot is mutated, so an InsufficientCostBasisError leaves the
// ledger exactly as it was.
func (l *CostBasisLedger) Dispose(quantity, salePrice decimal.Decimal, soldAt time.Time) (decimal.Decimal, error) {
	if quantity.Sign() <= 0 {
		return decimal.Zero, utils.NewValidationErrorf("disposal quantity must be positive, got %s", quantity.String())
	}
	if salePrice.Sign() < 0 {
		return decimal.Zero, utils.NewValidationErrorf("sale price must not be negative, got %s", salePrice.String())
	}

	available := l.TotalQuantity()
	if available.LessThan(quantity) {
		return decimal.Zero, utils.NewInsufficientCostBasisError(quantity, available)
	}

	pnl := decimal.Zero
	remaining := quantity
	for remaining.Sign() > 0 {
		lot := &l.lots[l.head]
		matched := decimal.Min(remaining, lot.Quantity)
		pnl = pnl.Add(salePrice.Sub(lot.CostBasisPerUnit).Mul(matched))
		lot.Quantity = lot.Quantity.Sub(matched)
		remaining = remaining.Sub(matched)
		if lot.Quantity.Sign() == 0 {
			l.head++
		}
	}
	l.compact()

	return pnl, nil
}

// transferOut consumes lots FIFO without realizing P&L; used when units move
// between wallets rather than being sold.
func (l *CostBasisLedger) transferOut(quantity decimal.Decimal) error {
	if quantity.Sign() <= 0 {
		return utils.NewValidationErrorf("transfer quantity must be positive, got %s", quantity.String())
	}

	available := l.TotalQuantity()
	if available.LessThan(quantity) {
		return utils.NewInsufficientCostBasisError(quantity, available)
	}

	remaining := quantity
	for remaining.Sign() > 0 {
		lot := &l.lots[l.head]
		matched := decimal.Min(remaining, lot.Quantity)
		lot.Quantity = lot.Quantity.Sub(matched)
		remaining = remaining.Sub(matched)
		if lot.Quantity.Sign() == 0 {
			l.head++
		}
	}
	l.compact()

	return nil
}

func (l *CostBasisLedger) compact() {
	if l.head == 0 {
		return
	}
	if l.head == len(l.lots) {
		l.lots = l.lots[:0]
		l.head = 0
		return
	}
	if l.head > len(l.lots)/2 {
		n := copy(l.lots, l.lots[l.head:])
		l.lots = l.lots[:n]
		l.head = 0
	}
}

// TotalCostBasis returns the summed cost basis of all live lots.
func (l *CostBasisLedger) TotalCostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots[l.head:] {
		total = total.Add(lot.Quantity.Mul(lot.CostBasisPerUnit))
	}
	return total
}

// TotalQuantity returns the summed quantity of all live lots.
func (l *CostBasisLedger) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots[l.head:] {
		total = total.Add(lot.Quantity)
	}
	return total
}

// AverageCostBasis returns total cost basis divided by total quantity, or
// zero for an empty ledger.
func (l *CostBasisLedger) AverageCostBasis() decimal.Decimal {
	quantity := l.TotalQuantity()
	if quantity.IsZero() {
		return decimal.Zero
	}
	return l.TotalCostBasis().Div(quantity)
}

// LotCount returns the number of live lots.
func (l *CostBasisLedger) LotCount() int {
	return len(l.lots) - l.head
}

// Lots returns a copy of the live lots, oldest first.
func (l *CostBasisLedger) Lots() []TaxLot {
	out := make([]TaxLot, l.LotCount())
	copy(out, l.lots[l.head:])
	return out
}

// Reset clears all lots.
func (l *CostBasisLedger) Reset() {
	l.lots = l.lots[:0]
	l.head = 0
}

// ReplayTransactions rebuilds a ledger from an ordered transaction history
// and returns the total realized P&L across all sells. Buys and incoming
// transfers append lots at the carried price; outgoing transfers consume
// lots without realizing anything.
func ReplayTransactions(ledger *CostBasisLedger, history []models.Transaction) (decimal.Decimal, error) {
	realized := decimal.Zero
	for _, tx := range history {
		switch tx.Type {
		case models.TransactionBuy:
			if err := ledger.AddAcquisition(tx.Quantity, tx.PriceUSD, tx.Timestamp); err != nil {
				return decimal.Zero, err
			}
		case models.TransactionSell:
			pnl, err := ledger.Dispose(tx.Quantity, tx.PriceUSD, tx.Timestamp)
			if err != nil {
				return decimal.Zero, err
			}
			realized = realized.Add(pnl)
		case models.TransactionTransfer:
			if tx.Incoming {
				if err := ledger.AddAcquisition(tx.Quantity, tx.PriceUSD, tx.Timestamp); err != nil {
					return decimal.Zero, err
				}
			} else if err := ledger.transferOut(tx.Quantity); err != nil {
				return decimal.Zero, err
			}
		default:
			return decimal.Zero, utils.NewValidationErrorf("unknown transaction type %d", tx.Type)
		}
	}
	return realized, nil
}
