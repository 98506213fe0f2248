package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tracker/internal/core"
	"tracker/internal/gateway"
	applog "tracker/internal/log"
)

var ErrNoFetcher = errors.New("ledger has no record fetcher")

// ReloadReport describes what Reload kept and skipped.
type ReloadReport struct {
	Categories          int `json:"categories"`
	Transactions        int `json:"transactions"`
	SkippedCategories   int `json:"skippedCategories"`
	SkippedTransactions int `json:"skippedTransactions"`
	// Drifted counts categories whose stored totals disagreed with the sum
	// of their transactions. The in-memory values are re-derived.
	Drifted int `json:"drifted"`
}

// Reload replaces the whole state with the fetcher's records. Malformed
// records and transactions pointing at unknown categories are skipped and
// logged. Category totals are recomputed from the loaded transactions. If
// either fetch fails the current state is kept.
func (l *Ledger) Reload(ctx context.Context) (ReloadReport, error) {
	var report ReloadReport
	if l.fetcher == nil {
		return report, ErrNoFetcher
	}

	var catRecs, txRecs []gateway.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := l.fetcher.FetchAll(gctx, gateway.KindCategories)
		if err != nil {
			return fmt.Errorf("fetch categories: %w", err)
		}
		catRecs = recs
		return nil
	})
	g.Go(func() error {
		recs, err := l.fetcher.FetchAll(gctx, gateway.KindTransactions)
		if err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}
		txRecs = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		l.log.ErrorContext(ctx, "Reload failed", applog.NewFields().
			WithOperation(applog.OpReload).WithError(err).ToSlice()...)
		return report, err
	}

	categories := make(map[core.CategoryID]*core.Category, len(catRecs))
	stored := make(map[core.CategoryID]core.Totals, len(catRecs))
	for _, r := range catRecs {
		c, err := gateway.CategoryFromRecord(r)
		if err != nil {
			report.SkippedCategories++
			l.log.WarnContext(ctx, "Skipping malformed category record",
				applog.FieldRecordID, r.ID, applog.FieldError, err.Error())
			continue
		}
		stored[c.ID] = c.Totals
		c.Totals = core.Totals{}
		categories[c.ID] = &c
	}

	transactions := make(map[core.TransactionID]*core.Transaction, len(txRecs))
	var totals core.Totals
	for _, r := range txRecs {
		t, err := gateway.TransactionFromRecord(r)
		if err == nil {
			err = t.Validate()
		}
		if err != nil {
			report.SkippedTransactions++
			l.log.WarnContext(ctx, "Skipping malformed transaction record",
				applog.FieldRecordID, r.ID, applog.FieldError, err.Error())
			continue
		}
		cat, ok := categories[t.CategoryID]
		if !ok {
			report.SkippedTransactions++
			l.log.WarnContext(ctx, "Skipping transaction with unknown category",
				applog.FieldTransactionID, t.ID, applog.FieldCategoryID, t.CategoryID)
			continue
		}
		if !totals.CanApply(t.Kind, t.Amount) || !cat.CanApply(t.Kind, t.Amount) {
			report.SkippedTransactions++
			l.log.WarnContext(ctx, "Skipping transaction that overflows the totals",
				applog.FieldTransactionID, t.ID, applog.FieldAmountCents, t.Amount.Cents)
			continue
		}
		transactions[t.ID] = &t
		cat.Apply(t.Kind, t.Amount)
		totals.Apply(t.Kind, t.Amount)
	}

	for id, c := range categories {
		if stored[id] != c.Totals {
			report.Drifted++
			l.log.WarnContext(ctx, "Stored category totals drifted",
				applog.FieldCategoryID, id,
				"stored_cents", stored[id].Amount.Cents,
				"derived_cents", c.Amount.Cents)
		}
	}
	report.Categories = len(categories)
	report.Transactions = len(transactions)

	l.mu.Lock()
	l.categories = categories
	l.transactions = transactions
	l.totals = totals
	l.loaded = true
	snap := l.commitLocked()
	l.mu.Unlock()

	l.log.InfoContext(ctx, "Ledger reloaded",
		applog.FieldOperation, applog.OpReload,
		"categories", report.Categories,
		"transactions", report.Transactions,
		"skipped", report.SkippedCategories+report.SkippedTransactions,
		"drifted", report.Drifted)
	l.publish(snap)
	return report, nil
}
