// Package chart computes the read-side series used for charting. Every
// function is pure and recomputes from its input on each call.
package chart

import (
	"sort"
	"time"

	"tracker/internal/core"
)

// Query narrows a monthly series. Zero values mean "no filter".
type Query struct {
	CategoryID core.CategoryID
	Kind       core.Kind
}

// WindowStart returns the inclusive lower bound of the trailing window:
// the calendar day of now, twelve months earlier, clamped to the last day of
// that month (2024-02-29 gives 2023-02-28). There is no upper bound.
func WindowStart(now time.Time) core.Date {
	y, m, d := core.DateOf(now).Date()
	if last := time.Date(y-1, m+1, 0, 0, 0, 0, 0, time.UTC).Day(); d > last {
		d = last
	}
	return core.NewDate(y-1, int(m), d)
}

func (q Query) match(t core.Transaction) bool {
	if q.CategoryID != "" && t.CategoryID != q.CategoryID {
		return false
	}
	if q.Kind != "" && t.Kind != q.Kind {
		return false
	}
	return true
}

// MonthlySeries groups transactions inside the trailing twelve month window
// by calendar month and nets them (income adds, expense subtracts). Months
// without transactions produce no point. Points are ascending by month.
func MonthlySeries(txs []core.Transaction, now time.Time, q Query) []core.ChartPoint {
	from := WindowStart(now)
	buckets := map[time.Time]core.Money{}
	for _, t := range txs {
		if t.Date.Before(from.Time) || !q.match(t) {
			continue
		}
		month := t.Date.MonthStart().Time
		buckets[month] = buckets[month].Add(t.Signed())
	}

	out := make([]core.ChartPoint, 0, len(buckets))
	for month, v := range buckets {
		out = append(out, core.ChartPoint{Month: month, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// CategoryBreakdown returns each category's total for kind and its share of
// the kind-wide total in basis points, largest first. Categories with
// nothing for kind are omitted.
func CategoryBreakdown(cats []core.Category, kind core.Kind) []core.CategoryShare {
	var total int64
	out := make([]core.CategoryShare, 0, len(cats))
	for _, c := range cats {
		amount := c.Expense
		if kind == core.KindIncome {
			amount = c.Income
		}
		if amount.Cents <= 0 {
			continue
		}
		total += amount.Cents
		out = append(out, core.CategoryShare{
			CategoryID: c.ID,
			Name:       c.Name,
			Color:      c.Color,
			Amount:     amount,
		})
	}
	for i := range out {
		// Half-up rounding to the nearest basis point.
		out[i].ShareBP = (out[i].Amount.Cents*10000 + total/2) / total
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
