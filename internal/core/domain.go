package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KindIncome  Kind = "Income"
	KindExpense Kind = "Expense"
)

const dateLayout = "2006-01-02"

type (
	// Kind decides the sign of a transaction's contribution to totals.
	Kind string

	CategoryID    string
	TransactionID string

	// Date is a calendar day in UTC; time of day is not used.
	Date struct {
		time.Time
	}

	// Totals is a net balance together with the income and expense sides that
	// produce it. Amount == Income - Expense after every Apply/Revert.
	Totals struct {
		Amount  Money `json:"amount"`
		Income  Money `json:"incomes"`
		Expense Money `json:"expenses"`
	}

	Category struct {
		ID     CategoryID `json:"id"`
		Name   string     `json:"name"`
		Color  Color      `json:"color"`
		Symbol Symbol     `json:"symbol"`
		Totals
	}

	Transaction struct {
		ID         TransactionID `json:"id"`
		Title      string        `json:"title"`
		Amount     Money         `json:"amount"`
		Date       Date          `json:"date"`
		Kind       Kind          `json:"type"`
		CategoryID CategoryID    `json:"category"`
	}
)

// Kinds lists every valid Kind.
func Kinds() []Kind { return []Kind{KindExpense, KindIncome} }

func (k Kind) Validate() error {
	switch k {
	case KindIncome, KindExpense:
		return nil
	default:
		return ErrInvalidKind
	}
}

// ParseKind is case-insensitive on input and canonical on output.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return KindIncome, nil
	case "expense":
		return KindExpense, nil
	default:
		return "", ErrInvalidKind
	}
}

func NewCategoryID() CategoryID       { return CategoryID(uuid.New().String()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New().String()) }

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's own year/month/day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Signed returns amount for income and -amount for expense.
func Signed(kind Kind, amount Money) Money {
	if kind == KindExpense {
		return amount.Neg()
	}
	return amount
}

// Apply adds a transaction contribution.
func (t *Totals) Apply(kind Kind, amount Money) {
	switch kind {
	case KindIncome:
		t.Amount = t.Amount.Add(amount)
		t.Income = t.Income.Add(amount)
	case KindExpense:
		t.Amount = t.Amount.Sub(amount)
		t.Expense = t.Expense.Add(amount)
	}
}

// CanApply reports whether Apply(kind, amount) keeps every total within the
// int64 range.
func (t Totals) CanApply(kind Kind, amount Money) bool {
	signed := Signed(kind, amount).Cents
	if _, ok := addChecked(t.Amount.Cents, signed); !ok {
		return false
	}
	side := t.Income
	if kind == KindExpense {
		side = t.Expense
	}
	_, ok := addChecked(side.Cents, amount.Cents)
	return ok
}

// Revert is the exact inverse of Apply.
func (t *Totals) Revert(kind Kind, amount Money) {
	switch kind {
	case KindIncome:
		t.Amount = t.Amount.Sub(amount)
		t.Income = t.Income.Sub(amount)
	case KindExpense:
		t.Amount = t.Amount.Add(amount)
		t.Expense = t.Expense.Sub(amount)
	}
}

// Subtract removes another set of totals, e.g. a deleted category's.
func (t *Totals) Subtract(o Totals) {
	t.Amount = t.Amount.Sub(o.Amount)
	t.Income = t.Income.Sub(o.Income)
	t.Expense = t.Expense.Sub(o.Expense)
}

// Balanced reports whether Amount == Income - Expense.
func (t Totals) Balanced() bool {
	return t.Amount == t.Income.Sub(t.Expense)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if len(c.Name) > 100 {
		return Invalid("name", ErrTooLong)
	}
	if err := c.Symbol.Validate(); err != nil {
		return Invalid("symbol", err)
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return Invalid("title", ErrEmptyTitle)
	}
	if len(t.Title) > 200 {
		return Invalid("title", ErrTooLong)
	}
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if err := t.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if err := t.Kind.Validate(); err != nil {
		return Invalid("type", err)
	}
	if strings.TrimSpace(string(t.CategoryID)) == "" {
		return Invalid("category", ErrUnknownCategory)
	}
	return nil
}

// Signed returns the transaction's contribution to a net balance.
func (t Transaction) Signed() Money {
	return Signed(t.Kind, t.Amount)
}
