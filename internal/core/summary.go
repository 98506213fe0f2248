package core

import "time"

// ChartPoint is one month's net aggregated value.
type ChartPoint struct {
	Month time.Time `json:"month"`
	Value Money     `json:"value"`
}

// CategoryShare is a category's amount for one kind and its share of that
// kind's total, in basis points (10000 = 100%).
type CategoryShare struct {
	CategoryID CategoryID `json:"category_id"`
	Name       string     `json:"name"`
	Color      Color      `json:"color"`
	Amount     Money      `json:"amount"`
	ShareBP    int64      `json:"share_bp"`
}
