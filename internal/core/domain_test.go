package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfAndMonthStart(t *testing.T) {
	d := DateOf(time.Date(2024, 3, 17, 22, 45, 0, 0, time.UTC))
	if d.String() != "2024-03-17" {
		t.Fatalf("unexpected day %s", d)
	}
	if d.MonthStart().String() != "2024-03-01" {
		t.Fatalf("unexpected month start %s", d.MonthStart())
	}
	if _, err := ParseDate("2024-13-01"); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"income": KindIncome, "Expense": KindExpense, " EXPENSE ": KindExpense} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestTotalsApplyRevert(t *testing.T) {
	var tot Totals
	tot.Apply(KindIncome, NewMoney(10000))
	tot.Apply(KindExpense, NewMoney(2500))
	if tot.Amount.Cents != 7500 || tot.Income.Cents != 10000 || tot.Expense.Cents != 2500 {
		t.Fatalf("unexpected totals %+v", tot)
	}
	if !tot.Balanced() {
		t.Fatalf("totals not balanced: %+v", tot)
	}
	tot.Revert(KindExpense, NewMoney(2500))
	tot.Revert(KindIncome, NewMoney(10000))
	if tot != (Totals{}) {
		t.Fatalf("expected zero totals after revert, got %+v", tot)
	}
}

func TestTotalsCanApply(t *testing.T) {
	nearTop := Totals{Amount: NewMoney(math.MaxInt64 - 5), Income: NewMoney(math.MaxInt64 - 5)}
	nearBottom := Totals{Amount: NewMoney(math.MinInt64 + 5), Expense: NewMoney(math.MaxInt64 - 5)}
	cases := []struct {
		name   string
		tot    Totals
		kind   Kind
		amount int64
		want   bool
	}{
		{"empty income", Totals{}, KindIncome, MaxAmountCents, true},
		{"income fits exactly", nearTop, KindIncome, 5, true},
		{"income overflows", nearTop, KindIncome, 6, false},
		{"expense lowers amount near top", nearTop, KindExpense, 6, true},
		{"expense fits exactly", nearBottom, KindExpense, 5, true},
		{"expense overflows", nearBottom, KindExpense, 6, false},
	}
	for _, tc := range cases {
		if got := tc.tot.CanApply(tc.kind, NewMoney(tc.amount)); got != tc.want {
			t.Errorf("%s: CanApply = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTotalsSubtract(t *testing.T) {
	tot := Totals{Amount: NewMoney(70), Income: NewMoney(100), Expense: NewMoney(30)}
	tot.Subtract(Totals{Amount: NewMoney(-30), Income: NewMoney(0), Expense: NewMoney(30)})
	if tot.Amount.Cents != 100 || tot.Expense.Cents != 0 || !tot.Balanced() {
		t.Fatalf("unexpected totals %+v", tot)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Title:      "Lunch",
		Amount:     NewMoney(2500),
		Date:       NewDate(2025, 1, 1),
		Kind:       KindExpense,
		CategoryID: "c1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if good.Signed().Cents != -2500 {
		t.Fatalf("expected signed -2500, got %d", good.Signed().Cents)
	}

	bads := []Transaction{
		{Title: "", Amount: NewMoney(1), Date: NewDate(2025, 1, 1), Kind: KindIncome, CategoryID: "c"},
		{Title: "a", Amount: NewMoney(-1), Date: NewDate(2025, 1, 1), Kind: KindIncome, CategoryID: "c"},
		{Title: "a", Amount: NewMoney(1), Date: Date{}, Kind: KindIncome, CategoryID: "c"},
		{Title: "a", Amount: NewMoney(1), Date: NewDate(2025, 1, 1), Kind: "Transfer", CategoryID: "c"},
		{Title: "a", Amount: NewMoney(1), Date: NewDate(2025, 1, 1), Kind: KindIncome, CategoryID: ""},
	}
	for i, tr := range bads {
		err := tr.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %T", i, err)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Food", Symbol: SymbolGroceries}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: "  ", Symbol: SymbolGroceries}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Category{Name: "Food", Symbol: "not.a.symbol"}).Validate(); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
}

func TestColorRoundTrip(t *testing.T) {
	c, err := ParseColor("#1a2B3c")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Hex() != "#1A2B3C" {
		t.Fatalf("unexpected hex %s", c.Hex())
	}
	if _, err := ParseColor("#12345"); err == nil {
		t.Fatalf("expected error for short color")
	}
	if ColorOrDefault("garbage") != DefaultColor {
		t.Fatalf("expected default color")
	}
}

func TestSymbolOrDefault(t *testing.T) {
	if SymbolOrDefault("fork.knife") != SymbolRestaurants {
		t.Fatalf("expected restaurants symbol")
	}
	if SymbolOrDefault("unknown") != DefaultSymbol {
		t.Fatalf("expected default symbol")
	}
	if len(Symbols()) != 48 {
		t.Fatalf("expected 48 symbols, got %d", len(Symbols()))
	}
}

func TestErrorHelpers(t *testing.T) {
	nf := error(&NotFoundError{Entity: "category", ID: "x"})
	if !IsNotFound(nf) || IsValidation(nf) {
		t.Fatalf("unexpected classification for %v", nf)
	}
	se := &SyncError{Op: "save", Kind: "categories", ID: "x", Attempts: 3, Err: errors.New("boom")}
	if !errors.Is(se, se.Err) {
		t.Fatalf("SyncError should unwrap")
	}
}
