package core

import "github.com/shopspring/decimal"

// Summary holds the folded totals of a ledger.
type Summary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// Summarize folds transactions into income, expense and balance totals.
func Summarize(txs []Transaction) Summary {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		amt := decimal.NewFromFloat(t.Amount)
		if t.Type.IsIncome() {
			income = income.Add(amt)
		} else {
			expense = expense.Add(amt)
		}
	}
	return Summary{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}

// Equal compares totals by value.
func (s Summary) Equal(o Summary) bool {
	return s.Income.Equal(o.Income) && s.Expense.Equal(o.Expense) && s.Balance.Equal(o.Balance)
}

// Series returns [income, expense, balance] for charting.
func (s Summary) Series() [3]float64 {
	return [3]float64{
		s.Income.InexactFloat64(),
		s.Expense.InexactFloat64(),
		s.Balance.InexactFloat64(),
	}
}
