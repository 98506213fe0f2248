// Package ledger holds the in-memory categories, transactions and running
// totals. It is the only code that mutates aggregate state; every change is
// applied under one mutex and then handed to a gateway.Sink for durability.
package ledger

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"tracker/internal/chart"
	"tracker/internal/core"
	"tracker/internal/gateway"
	applog "tracker/internal/log"
)

const DefaultCurrency = "EUR"

// Options wires a Ledger to its collaborators. Every field is optional.
type Options struct {
	// Sink receives durability requests. Defaults to gateway.Discard.
	Sink gateway.Sink
	// Fetcher is read by Reload.
	Fetcher gateway.RecordFetcher
	// Clock anchors the chart window. Defaults to time.Now.
	Clock func() time.Time
	// Currency is the ISO 4217 code shown to observers.
	Currency string
	// LegacyEditTotals makes EditTransaction persist the new fields without
	// adjusting any totals. Only for compatibility testing.
	LegacyEditTotals bool
	Logger           *applog.Logger
}

// Snapshot is a consistent, detached copy of the observable state.
type Snapshot struct {
	Version       uint64             `json:"version"`
	Transactions  []core.Transaction `json:"transactions"`
	Categories    []core.Category    `json:"categories"`
	TotalAmount   core.Money         `json:"totalAmount"`
	TotalIncomes  core.Money         `json:"totalIncomes"`
	TotalExpenses core.Money         `json:"totalExpenses"`
	SelectedType  core.Kind          `json:"selectedType"`
	CurrencyCode  string             `json:"currencyCode"`
	IsLoaded      bool               `json:"isLoaded"`
}

// TransactionPatch lists the fields EditTransaction replaces. Nil means keep.
type TransactionPatch struct {
	Title      *string
	Amount     *core.Money
	Date       *core.Date
	CategoryID *core.CategoryID
	Kind       *core.Kind
}

type Ledger struct {
	mu           sync.RWMutex
	categories   map[core.CategoryID]*core.Category
	transactions map[core.TransactionID]*core.Transaction
	totals       core.Totals
	selectedType core.Kind
	currency     string
	loaded       bool
	version      uint64

	sink    gateway.Sink
	fetcher gateway.RecordFetcher
	now     func() time.Time
	legacy  bool
	log     *applog.Logger

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func New(opts Options) *Ledger {
	if opts.Sink == nil {
		opts.Sink = gateway.Discard
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	currency, err := normalizeCurrency(opts.Currency)
	if err != nil {
		currency = DefaultCurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = &applog.Logger{Logger: slog.Default()}
	}
	return &Ledger{
		categories:   map[core.CategoryID]*core.Category{},
		transactions: map[core.TransactionID]*core.Transaction{},
		selectedType: core.KindExpense,
		currency:     currency,
		sink:         opts.Sink,
		fetcher:      opts.Fetcher,
		now:          opts.Clock,
		legacy:       opts.LegacyEditTotals,
		log:          logger.WithComponent(applog.ComponentLedger),
		subs:         map[int]func(Snapshot){},
	}
}

// AddTransaction records a new transaction and returns its id.
func (l *Ledger) AddTransaction(title string, amount core.Money, date core.Date, categoryID core.CategoryID, kind core.Kind) (core.TransactionID, error) {
	t := core.Transaction{
		ID:         core.NewTransactionID(),
		Title:      strings.TrimSpace(title),
		Amount:     amount,
		Date:       date,
		Kind:       kind,
		CategoryID: categoryID,
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	l.mu.Lock()
	cat, ok := l.categories[categoryID]
	if !ok {
		l.mu.Unlock()
		return "", core.Invalid("category", core.ErrUnknownCategory)
	}
	if !l.totals.CanApply(t.Kind, t.Amount) || !cat.CanApply(t.Kind, t.Amount) {
		l.mu.Unlock()
		return "", core.Invalid("amount", core.ErrTotalOverflow)
	}
	l.transactions[t.ID] = &t
	l.totals.Apply(t.Kind, t.Amount)
	cat.Apply(t.Kind, t.Amount)

	l.sink.Enqueue(gateway.SaveOp(gateway.TransactionRecord(t)))
	l.sink.Enqueue(gateway.SaveOp(gateway.CategoryRecord(*cat)))
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.Info("Transaction added", applog.NewFields().
		WithTransaction(string(t.ID), string(t.CategoryID), string(t.Kind), t.Amount.Cents).ToSlice()...)
	l.publish(snap)
	return t.ID, nil
}

// EditTransaction replaces the fields set in patch. The old contribution is
// reverted and the new one applied, so the transaction may move between
// categories and kinds.
func (l *Ledger) EditTransaction(id core.TransactionID, patch TransactionPatch) error {
	l.mu.Lock()
	cur, ok := l.transactions[id]
	if !ok {
		l.mu.Unlock()
		return &core.NotFoundError{Entity: "transaction", ID: string(id)}
	}

	next := *cur
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Amount != nil {
		next.Amount = *patch.Amount
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.CategoryID != nil {
		next.CategoryID = *patch.CategoryID
	}
	if patch.Kind != nil {
		next.Kind = *patch.Kind
	}
	if err := next.Validate(); err != nil {
		l.mu.Unlock()
		return err
	}
	newCat, ok := l.categories[next.CategoryID]
	if !ok {
		l.mu.Unlock()
		return core.Invalid("category", core.ErrUnknownCategory)
	}
	oldCat := l.categories[cur.CategoryID]
	if !l.legacy && !l.fitsEdit(*cur, next, oldCat, newCat) {
		l.mu.Unlock()
		return core.Invalid("amount", core.ErrTotalOverflow)
	}

	prev := *cur
	*cur = next
	l.sink.Enqueue(gateway.SaveOp(gateway.TransactionRecord(next)))

	if !l.legacy {
		l.totals.Revert(prev.Kind, prev.Amount)
		l.totals.Apply(next.Kind, next.Amount)
		if oldCat != nil {
			oldCat.Revert(prev.Kind, prev.Amount)
			l.sink.Enqueue(gateway.SaveOp(gateway.CategoryRecord(*oldCat)))
		}
		newCat.Apply(next.Kind, next.Amount)
		if oldCat != newCat {
			l.sink.Enqueue(gateway.SaveOp(gateway.CategoryRecord(*newCat)))
		}
	}
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.Info("Transaction edited", applog.NewFields().
		WithTransaction(string(id), string(next.CategoryID), string(next.Kind), next.Amount.Cents).
		WithOperation(applog.OpUpdate).ToSlice()...)
	l.publish(snap)
	return nil
}

// fitsEdit reports whether replacing prev with next keeps the ledger and
// category totals in range. Reverting is always safe, so only the apply
// side is checked, against the reverted totals.
func (l *Ledger) fitsEdit(prev, next core.Transaction, oldCat, newCat *core.Category) bool {
	totals := l.totals
	totals.Revert(prev.Kind, prev.Amount)
	if !totals.CanApply(next.Kind, next.Amount) {
		return false
	}
	cat := newCat.Totals
	if oldCat == newCat {
		cat.Revert(prev.Kind, prev.Amount)
	}
	return cat.CanApply(next.Kind, next.Amount)
}

// DeleteTransaction reverts the transaction's contribution and removes it.
func (l *Ledger) DeleteTransaction(id core.TransactionID) error {
	l.mu.Lock()
	t, ok := l.transactions[id]
	if !ok {
		l.mu.Unlock()
		return &core.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	delete(l.transactions, id)
	l.totals.Revert(t.Kind, t.Amount)
	l.sink.Enqueue(gateway.DeleteOp(gateway.KindTransactions, string(id)))
	if cat, ok := l.categories[t.CategoryID]; ok {
		cat.Revert(t.Kind, t.Amount)
		l.sink.Enqueue(gateway.SaveOp(gateway.CategoryRecord(*cat)))
	}
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.Info("Transaction deleted", applog.FieldTransactionID, id)
	l.publish(snap)
	return nil
}

// AddCategory creates a category with zero totals and returns its id.
func (l *Ledger) AddCategory(name string, color core.Color, symbol core.Symbol) (core.CategoryID, error) {
	c := core.Category{
		ID:     core.NewCategoryID(),
		Name:   strings.TrimSpace(name),
		Color:  color,
		Symbol: symbol,
	}
	if err := c.Validate(); err != nil {
		return "", err
	}

	l.mu.Lock()
	l.categories[c.ID] = &c
	l.sink.Enqueue(gateway.SaveOp(gateway.CategoryRecord(c)))
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.Info("Category added", applog.FieldCategoryID, c.ID, "name", c.Name)
	l.publish(snap)
	return c.ID, nil
}

// EditCategory replaces presentation fields. Totals are untouched.
func (l *Ledger) EditCategory(id core.CategoryID, name string, color core.Color, symbol core.Symbol) error {
	l.mu.Lock()
	c, ok := l.categories[id]
	if !ok {
		l.mu.Unlock()
		return &core.NotFoundError{Entity: "category", ID: string(id)}
	}
	next := *c
	next.Name = strings.TrimSpace(name)
	next.Color = color
	next.Symbol = symbol
	if err := next.Validate(); err != nil {
		l.mu.Unlock()
		return err
	}
	*c = next
	l.sink.Enqueue(gateway.SaveOp(gateway.CategoryRecord(next)))
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.Info("Category edited", applog.FieldCategoryID, id)
	l.publish(snap)
	return nil
}

// DeleteCategory removes the category and, in the same step, every
// transaction that references it.
func (l *Ledger) DeleteCategory(id core.CategoryID) error {
	l.mu.Lock()
	c, ok := l.categories[id]
	if !ok {
		l.mu.Unlock()
		return &core.NotFoundError{Entity: "category", ID: string(id)}
	}
	l.totals.Subtract(c.Totals)

	removed := 0
	for tid, t := range l.transactions {
		if t.CategoryID != id {
			continue
		}
		delete(l.transactions, tid)
		l.sink.Enqueue(gateway.DeleteOp(gateway.KindTransactions, string(tid)))
		removed++
	}
	delete(l.categories, id)
	l.sink.Enqueue(gateway.DeleteOp(gateway.KindCategories, string(id)))
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.Info("Category deleted", applog.FieldCategoryID, id, applog.FieldCount, removed)
	l.publish(snap)
	return nil
}

// SetSelectedType changes the kind observers display by default.
func (l *Ledger) SetSelectedType(kind core.Kind) error {
	if err := kind.Validate(); err != nil {
		return core.Invalid("selectedType", err)
	}
	l.mu.Lock()
	l.selectedType = kind
	snap := l.commitLocked()
	l.mu.Unlock()
	l.publish(snap)
	return nil
}

// SetCurrency changes the currency code shown to observers.
func (l *Ledger) SetCurrency(code string) error {
	code, err := normalizeCurrency(code)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.currency = code
	snap := l.commitLocked()
	l.mu.Unlock()
	l.publish(snap)
	return nil
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", core.Invalid("currencyCode", errInvalidCurrency)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", core.Invalid("currencyCode", errInvalidCurrency)
		}
	}
	return code, nil
}

// Snapshot returns a consistent copy of the observable state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:       l.version,
		Transactions:  make([]core.Transaction, 0, len(l.transactions)),
		Categories:    make([]core.Category, 0, len(l.categories)),
		TotalAmount:   l.totals.Amount,
		TotalIncomes:  l.totals.Income,
		TotalExpenses: l.totals.Expense,
		SelectedType:  l.selectedType,
		CurrencyCode:  l.currency,
		IsLoaded:      l.loaded,
	}
	for _, t := range l.transactions {
		s.Transactions = append(s.Transactions, *t)
	}
	for _, c := range l.categories {
		s.Categories = append(s.Categories, *c)
	}
	sortTransactions(s.Transactions)
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].Name != s.Categories[j].Name {
			return s.Categories[i].Name < s.Categories[j].Name
		}
		return s.Categories[i].ID < s.Categories[j].ID
	})
	return s
}

// sortTransactions orders newest first, ties by id.
func sortTransactions(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.After(txs[j].Date.Time)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Totals returns the ledger-wide totals.
func (l *Ledger) Totals() core.Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals
}

func (l *Ledger) IsLoaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

func (l *Ledger) Category(id core.CategoryID) (core.Category, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.categories[id]
	if !ok {
		return core.Category{}, &core.NotFoundError{Entity: "category", ID: string(id)}
	}
	return *c, nil
}

func (l *Ledger) Transaction(id core.TransactionID) (core.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transactions[id]
	if !ok {
		return core.Transaction{}, &core.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	return *t, nil
}

// TransactionsByKind returns the transactions of kind, newest first.
func (l *Ledger) TransactionsByKind(kind core.Kind) []core.Transaction {
	return l.filter(func(t *core.Transaction) bool { return t.Kind == kind })
}

// TransactionsByCategory returns the category's transactions, newest first.
func (l *Ledger) TransactionsByCategory(id core.CategoryID) ([]core.Transaction, error) {
	if _, err := l.Category(id); err != nil {
		return nil, err
	}
	return l.filter(func(t *core.Transaction) bool { return t.CategoryID == id }), nil
}

func (l *Ledger) filter(keep func(*core.Transaction) bool) []core.Transaction {
	l.mu.RLock()
	out := make([]core.Transaction, 0)
	for _, t := range l.transactions {
		if keep(t) {
			out = append(out, *t)
		}
	}
	l.mu.RUnlock()
	sortTransactions(out)
	return out
}

// MonthlySeries computes the chart series over the current transactions.
func (l *Ledger) MonthlySeries(q chart.Query) []core.ChartPoint {
	l.mu.RLock()
	txs := make([]core.Transaction, 0, len(l.transactions))
	for _, t := range l.transactions {
		txs = append(txs, *t)
	}
	l.mu.RUnlock()
	return chart.MonthlySeries(txs, l.now(), q)
}

// CategoryBreakdown computes per-category shares for kind.
func (l *Ledger) CategoryBreakdown(kind core.Kind) []core.CategoryShare {
	l.mu.RLock()
	cats := make([]core.Category, 0, len(l.categories))
	for _, c := range l.categories {
		cats = append(cats, *c)
	}
	l.mu.RUnlock()
	return chart.CategoryBreakdown(cats, kind)
}
