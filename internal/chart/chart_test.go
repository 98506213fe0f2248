package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/core"
)

var now = time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)

func tx(id string, y, m, d int, kind core.Kind, cents int64, cat core.CategoryID) core.Transaction {
	return core.Transaction{
		ID: core.TransactionID(id), Title: id, Amount: core.NewMoney(cents),
		Date: core.NewDate(y, m, d), Kind: kind, CategoryID: cat,
	}
}

func TestMonthlySeriesEmpty(t *testing.T) {
	assert.Empty(t, MonthlySeries(nil, now, Query{}))
}

func TestMonthlySeriesSingleIncome(t *testing.T) {
	got := MonthlySeries([]core.Transaction{tx("a", 2025, 6, 2, core.KindIncome, 10000, "c")}, now, Query{})
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got[0].Month)
	assert.EqualValues(t, 10000, got[0].Value.Cents)
}

func TestMonthlySeriesNetAndKindFilter(t *testing.T) {
	txs := []core.Transaction{
		tx("in", 2025, 6, 2, core.KindIncome, 10000, "c"),
		tx("out", 2025, 6, 3, core.KindExpense, 4000, "c"),
	}

	net := MonthlySeries(txs, now, Query{})
	require.Len(t, net, 1)
	assert.EqualValues(t, 6000, net[0].Value.Cents)

	exp := MonthlySeries(txs, now, Query{Kind: core.KindExpense})
	require.Len(t, exp, 1)
	assert.EqualValues(t, -4000, exp[0].Value.Cents)

	onlyExpense := MonthlySeries(txs[1:], now, Query{})
	require.Len(t, onlyExpense, 1)
	assert.EqualValues(t, -4000, onlyExpense[0].Value.Cents)
}

func TestMonthlySeriesWindowAndOrdering(t *testing.T) {
	txs := []core.Transaction{
		tx("future", 2025, 9, 1, core.KindIncome, 100, "c"),
		tx("edge", 2024, 6, 15, core.KindIncome, 200, "c"),   // exactly now-12 months: included
		tx("before", 2024, 6, 14, core.KindIncome, 300, "c"), // one day too old
		tx("mid", 2025, 1, 10, core.KindExpense, 50, "c"),
		tx("mid2", 2025, 1, 20, core.KindExpense, 25, "c"),
	}
	got := MonthlySeries(txs, now, Query{})
	require.Len(t, got, 3)
	assert.Equal(t, time.June, got[0].Month.Month())
	assert.Equal(t, 2024, got[0].Month.Year())
	assert.EqualValues(t, 200, got[0].Value.Cents)
	assert.EqualValues(t, -75, got[1].Value.Cents)
	assert.Equal(t, time.September, got[2].Month.Month())
}

func TestMonthlySeriesCategoryFilter(t *testing.T) {
	txs := []core.Transaction{
		tx("a", 2025, 5, 1, core.KindExpense, 100, "food"),
		tx("b", 2025, 5, 2, core.KindExpense, 200, "rent"),
	}
	got := MonthlySeries(txs, now, Query{CategoryID: "food"})
	require.Len(t, got, 1)
	assert.EqualValues(t, -100, got[0].Value.Cents)

	assert.Empty(t, MonthlySeries(txs, now, Query{CategoryID: "food", Kind: core.KindIncome}))
}

func TestMonthlySeriesNoDrift(t *testing.T) {
	txs := make([]core.Transaction, 0, 1000)
	for i := 0; i < 1000; i++ {
		txs = append(txs, tx("t", 2025, 6, 1, core.KindIncome, 10, "c")) // 0.10 each
	}
	got := MonthlySeries(txs, now, Query{})
	require.Len(t, got, 1)
	assert.Equal(t, "100.00", got[0].Value.String())
}

func TestWindowStart(t *testing.T) {
	cases := []struct {
		now  time.Time
		want string
	}{
		{now, "2024-06-15"},
		{time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), "2023-02-28"},
		{time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), "2024-02-28"},
		{time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC), "2024-03-31"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2024-01-01"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WindowStart(tc.now).String(), "now=%s", tc.now)
	}
}

func TestMonthlySeriesLeapDayKeepsLastDayOfFebruary(t *testing.T) {
	leap := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx("early", 2023, 2, 27, core.KindExpense, 100, "c"),
		tx("edge", 2023, 2, 28, core.KindExpense, 250, "c"),
	}
	got := MonthlySeries(txs, leap, Query{})
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), got[0].Month)
	assert.EqualValues(t, -250, got[0].Value.Cents)
}

func TestCategoryBreakdown(t *testing.T) {
	cats := []core.Category{
		{ID: "a", Name: "Rent", Totals: core.Totals{Expense: core.NewMoney(7000)}},
		{ID: "b", Name: "Food", Totals: core.Totals{Expense: core.NewMoney(2000), Income: core.NewMoney(500)}},
		{ID: "c", Name: "Coffee", Totals: core.Totals{Expense: core.NewMoney(1000)}},
		{ID: "d", Name: "Salary", Totals: core.Totals{Income: core.NewMoney(100000)}},
		{ID: "e", Name: "Books", Totals: core.Totals{Expense: core.NewMoney(1000)}},
	}

	got := CategoryBreakdown(cats, core.KindExpense)
	require.Len(t, got, 4)
	assert.Equal(t, "Rent", got[0].Name)
	assert.EqualValues(t, 6364, got[0].ShareBP) // 7000/11000
	assert.Equal(t, "Food", got[1].Name)
	assert.Equal(t, "Books", got[2].Name, "ties broken by name")
	assert.Equal(t, "Coffee", got[3].Name)

	inc := CategoryBreakdown(cats, core.KindIncome)
	require.Len(t, inc, 2)
	assert.Equal(t, "Salary", inc[0].Name)

	assert.Empty(t, CategoryBreakdown(nil, core.KindExpense))
}
