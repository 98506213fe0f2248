// Package gateway defines the record contract between the ledger and the
// durable record stores, plus the codecs that turn domain values into
// flat string records and back.
package gateway

import (
	"errors"
	"fmt"
	"strings"

	"tracker/internal/core"
)

// Kind names a record collection.
type Kind string

const (
	KindCategories   Kind = "categories"
	KindTransactions Kind = "transactions"
)

// Kinds lists every record collection.
func Kinds() []Kind { return []Kind{KindCategories, KindTransactions} }

func (k Kind) Validate() error {
	switch k {
	case KindCategories, KindTransactions:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// Field names as persisted.
const (
	FieldName     = "name"
	FieldAmount   = "amount"
	FieldIncomes  = "incomes"
	FieldExpenses = "expenses"
	FieldColor    = "color"
	FieldSymbol   = "symbol"
	FieldDate     = "date"
	FieldCategory = "category"
	FieldType     = "type"
)

// CategoryFields and TransactionFields list the persisted columns in order.
var (
	CategoryFields    = []string{FieldName, FieldAmount, FieldIncomes, FieldExpenses, FieldColor, FieldSymbol}
	TransactionFields = []string{FieldName, FieldAmount, FieldDate, FieldCategory, FieldType}
)

// FieldsOf returns the column list for kind.
func FieldsOf(kind Kind) []string {
	if kind == KindCategories {
		return CategoryFields
	}
	return TransactionFields
}

var (
	ErrMissingField = errors.New("missing field")
	ErrUnknownKind  = errors.New("unknown record kind")
	ErrUnknownOp    = errors.New("unknown op")
)

// Record is an opaque key-value record. Every value is a string; a field
// absent from Fields is treated as missing.
type Record struct {
	Kind   Kind              `json:"kind"`
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := Record{Kind: r.Kind, ID: r.ID}
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

func (r Record) field(name string) (string, error) {
	v, ok := r.Fields[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s %s: %w %q", r.Kind, r.ID, ErrMissingField, name)
	}
	return v, nil
}

// CategoryRecord encodes c.
func CategoryRecord(c core.Category) Record {
	return Record{
		Kind: KindCategories,
		ID:   string(c.ID),
		Fields: map[string]string{
			FieldName:     c.Name,
			FieldAmount:   c.Amount.String(),
			FieldIncomes:  c.Income.String(),
			FieldExpenses: c.Expense.String(),
			FieldColor:    c.Color.Hex(),
			FieldSymbol:   string(c.Symbol),
		},
	}
}

// CategoryFromRecord decodes a category record. Name and the three totals
// are required; an unparseable color or symbol falls back to its default.
func CategoryFromRecord(r Record) (core.Category, error) {
	if r.ID == "" {
		return core.Category{}, fmt.Errorf("%s: %w %q", r.Kind, ErrMissingField, "id")
	}
	name, err := r.field(FieldName)
	if err != nil {
		return core.Category{}, err
	}
	var tot core.Totals
	for _, f := range []struct {
		name string
		dst  *core.Money
	}{
		{FieldAmount, &tot.Amount},
		{FieldIncomes, &tot.Income},
		{FieldExpenses, &tot.Expense},
	} {
		raw, err := r.field(f.name)
		if err != nil {
			return core.Category{}, err
		}
		m, err := core.ParseSignedMoney(raw)
		if err != nil {
			return core.Category{}, fmt.Errorf("category %s %s: %w", r.ID, f.name, err)
		}
		*f.dst = m
	}
	return core.Category{
		ID:     core.CategoryID(r.ID),
		Name:   name,
		Color:  core.ColorOrDefault(r.Fields[FieldColor]),
		Symbol: core.SymbolOrDefault(r.Fields[FieldSymbol]),
		Totals: tot,
	}, nil
}

// TransactionRecord encodes t.
func TransactionRecord(t core.Transaction) Record {
	return Record{
		Kind: KindTransactions,
		ID:   string(t.ID),
		Fields: map[string]string{
			FieldName:     t.Title,
			FieldAmount:   t.Amount.String(),
			FieldDate:     t.Date.String(),
			FieldCategory: string(t.CategoryID),
			FieldType:     string(t.Kind),
		},
	}
}

// TransactionFromRecord decodes a transaction record. Every field is required.
func TransactionFromRecord(r Record) (core.Transaction, error) {
	if r.ID == "" {
		return core.Transaction{}, fmt.Errorf("%s: %w %q", r.Kind, ErrMissingField, "id")
	}
	vals := make(map[string]string, len(TransactionFields))
	for _, f := range TransactionFields {
		v, err := r.field(f)
		if err != nil {
			return core.Transaction{}, err
		}
		vals[f] = v
	}
	amount, err := core.ParseMoney(vals[FieldAmount])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount: %w", r.ID, err)
	}
	date, err := core.ParseDate(vals[FieldDate])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", r.ID, err)
	}
	kind, err := core.ParseKind(vals[FieldType])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s type: %w", r.ID, err)
	}
	return core.Transaction{
		ID:         core.TransactionID(r.ID),
		Title:      vals[FieldName],
		Amount:     amount,
		Date:       date,
		Kind:       kind,
		CategoryID: core.CategoryID(vals[FieldCategory]),
	}, nil
}
