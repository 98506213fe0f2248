package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/core"
	"tracker/internal/gateway"
	"tracker/internal/gateway/memory"
	"tracker/internal/ledger"
	"tracker/internal/services"
)

var fixedNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type fakeSync struct {
	failed  []*core.SyncError
	retried int
}

func (f *fakeSync) Stats() services.SyncStats { return services.SyncStats{Enqueued: 7, Failed: 1} }
func (f *fakeSync) Failed() []*core.SyncError { return f.failed }
func (f *fakeSync) RetryFailed() int {
	f.retried++
	return len(f.failed)
}

type failingFetcher struct{}

func (failingFetcher) FetchAll(context.Context, gateway.Kind) ([]gateway.Record, error) {
	return nil, errors.New("backend down")
}

type testServer struct {
	*Server
	ledger *ledger.Ledger
	store  *memory.Store
	sync   *fakeSync
}

func newTestServer(t *testing.T, fetcher gateway.RecordFetcher) *testServer {
	t.Helper()
	store := memory.New()
	if fetcher == nil {
		fetcher = store
	}
	l := ledger.New(ledger.Options{
		Sink:    gateway.SinkFunc(func(op gateway.Op) { _ = gateway.Apply(context.Background(), store, op) }),
		Fetcher: fetcher,
		Clock:   func() time.Time { return fixedNow },
	})
	fs := &fakeSync{failed: []*core.SyncError{{Op: "save", Kind: "categories", ID: "c1", Attempts: 3, Err: errors.New("boom")}}}
	srv := NewServer(":0", l, Options{
		Sync:               fs,
		RateLimitPerMinute: 1000,
		Clock:              func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, ledger: l, store: store, sync: fs}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (ts *testServer) createCategory(t *testing.T, name string) core.Category {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/categories", map[string]string{"name": name, "color": "#FF0000", "symbol": "cart.fill"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[core.Category](t, rr)
}

func (ts *testServer) createTx(t *testing.T, title, amount, date string, cat core.CategoryID, kind string) core.Transaction {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/transactions", map[string]string{
		"title": title, "amount": amount, "date": date, "category": string(cat), "type": kind,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[core.Transaction](t, rr)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTransactionLifecycleKeepsTotals(t *testing.T) {
	ts := newTestServer(t, nil)
	food := ts.createCategory(t, "Food")
	assert.Equal(t, "#FF0000", food.Color.Hex())

	tx := ts.createTx(t, "Lunch", "25.00", "2025-06-10", food.ID, "expense")
	assert.Equal(t, core.KindExpense, tx.Kind)
	assert.Equal(t, int64(2500), tx.Amount.Cents)

	snap := decode[ledger.Snapshot](t, ts.do(t, http.MethodGet, "/api/ledger", nil))
	assert.Equal(t, int64(-2500), snap.TotalAmount.Cents)
	assert.Equal(t, int64(2500), snap.TotalExpenses.Cents)
	require.Len(t, snap.Categories, 1)
	assert.Equal(t, int64(-2500), snap.Categories[0].Amount.Cents)

	// Move the amount to income.
	rr := ts.do(t, http.MethodPut, "/api/transactions/"+string(tx.ID), map[string]string{"type": "Income", "amount": "40"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	snap = decode[ledger.Snapshot](t, ts.do(t, http.MethodGet, "/api/ledger", nil))
	assert.Equal(t, int64(4000), snap.TotalAmount.Cents)
	assert.Equal(t, int64(0), snap.TotalExpenses.Cents)
	assert.Equal(t, int64(4000), snap.TotalIncomes.Cents)

	rr = ts.do(t, http.MethodDelete, "/api/transactions/"+string(tx.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	snap = decode[ledger.Snapshot](t, ts.do(t, http.MethodGet, "/api/ledger", nil))
	assert.True(t, snap.TotalAmount.IsZero())
	assert.Empty(t, snap.Transactions)

	// The sink wrote through to the store.
	assert.Equal(t, 1, ts.store.Len(gateway.KindCategories))
	assert.Equal(t, 0, ts.store.Len(gateway.KindTransactions))
}

func TestCategoryDeleteCascades(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createCategory(t, "A")
	b := ts.createCategory(t, "B")
	ts.createTx(t, "one", "10", "2025-06-01", a.ID, "Expense")
	ts.createTx(t, "two", "5", "2025-06-02", a.ID, "Income")
	ts.createTx(t, "three", "3", "2025-06-03", b.ID, "Expense")

	txs := decode[[]core.Transaction](t, ts.do(t, http.MethodGet, "/api/categories/"+string(a.ID)+"/transactions", nil))
	assert.Len(t, txs, 2)

	rr := ts.do(t, http.MethodDelete, "/api/categories/"+string(a.ID), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	snap := decode[ledger.Snapshot](t, ts.do(t, http.MethodGet, "/api/ledger", nil))
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "three", snap.Transactions[0].Title)
	assert.Equal(t, int64(-300), snap.TotalAmount.Cents)

	rr = ts.do(t, http.MethodGet, "/api/categories/"+string(a.ID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, nil)
	food := ts.createCategory(t, "Food")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"empty category name", http.MethodPost, "/api/categories", map[string]string{"name": "  "}, 400, "name"},
		{"bad color", http.MethodPost, "/api/categories", map[string]string{"name": "X", "color": "red"}, 400, "color"},
		{"bad symbol", http.MethodPost, "/api/categories", map[string]string{"name": "X", "symbol": "nope"}, 400, "symbol"},
		{"unknown field", http.MethodPost, "/api/categories", `{"name":"X","extra":1}`, 400, "body"},
		{"malformed json", http.MethodPost, "/api/transactions", `{"title":`, 400, "body"},
		{"empty body", http.MethodPost, "/api/transactions", nil, 400, "body"},
		{"missing amount", http.MethodPost, "/api/transactions", map[string]string{"title": "t", "category": string(food.ID), "type": "Expense"}, 400, "amount"},
		{"negative amount", http.MethodPost, "/api/transactions", map[string]string{"title": "t", "amount": "-1", "category": string(food.ID), "type": "Expense"}, 400, "amount"},
		{"bad type", http.MethodPost, "/api/transactions", map[string]string{"title": "t", "amount": "1", "category": string(food.ID), "type": "Transfer"}, 400, "type"},
		{"unknown category", http.MethodPost, "/api/transactions", map[string]string{"title": "t", "amount": "1", "category": "missing", "type": "Expense"}, 400, "category"},
		{"edit missing tx", http.MethodPut, "/api/transactions/nope", map[string]string{"title": "x"}, 404, ""},
		{"delete missing category", http.MethodDelete, "/api/categories/nope", nil, 404, ""},
		{"bad kind filter", http.MethodGet, "/api/transactions?kind=other", nil, 400, "kind"},
		{"breakdown needs kind", http.MethodGet, "/api/charts/categories", nil, 400, "kind"},
		{"monthly unknown category", http.MethodGet, "/api/charts/monthly?category=nope", nil, 404, ""},
		{"bad currency", http.MethodPut, "/api/preferences", map[string]string{"currencyCode": "EURO"}, 400, "currencyCode"},
		{"unknown route", http.MethodGet, "/api/nothing", nil, 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := ts.ledger.Snapshot()
			rr := ts.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			body := decode[errorBody](t, rr)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.field, body.Field)
			assert.Equal(t, before, ts.ledger.Snapshot(), "rejected request must not mutate state")
		})
	}
}

func TestTransactionDefaultsToToday(t *testing.T) {
	ts := newTestServer(t, nil)
	food := ts.createCategory(t, "Food")

	rr := ts.do(t, http.MethodPost, "/api/transactions",
		`{"title":"Coffee","amount":1.5,"category":"`+string(food.ID)+`","type":"Expense"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[core.Transaction](t, rr)
	assert.Equal(t, "2025-06-15", tx.Date.String())
	assert.Equal(t, int64(150), tx.Amount.Cents)
	assert.Equal(t, "/api/transactions/"+string(tx.ID), rr.Header().Get("Location"))
}

func TestListAndCharts(t *testing.T) {
	ts := newTestServer(t, nil)
	food := ts.createCategory(t, "Food")
	salary := ts.createCategory(t, "Salary")
	ts.createTx(t, "Groceries", "30", "2025-05-03", food.ID, "Expense")
	ts.createTx(t, "Dinner", "20", "2025-06-01", food.ID, "Expense")
	ts.createTx(t, "Pay", "1000", "2025-06-01", salary.ID, "Income")
	ts.createTx(t, "Ancient", "99", "2024-01-01", food.ID, "Expense")

	expenses := decode[[]core.Transaction](t, ts.do(t, http.MethodGet, "/api/transactions?kind=expense", nil))
	require.Len(t, expenses, 3)
	assert.Equal(t, "Dinner", expenses[0].Title)

	all := decode[[]core.Transaction](t, ts.do(t, http.MethodGet, "/api/transactions", nil))
	assert.Len(t, all, 4)

	points := decode[[]core.ChartPoint](t, ts.do(t, http.MethodGet, "/api/charts/monthly", nil))
	require.Len(t, points, 2)
	assert.Equal(t, int64(-3000), points[0].Value.Cents)
	assert.Equal(t, int64(98000), points[1].Value.Cents)

	points = decode[[]core.ChartPoint](t, ts.do(t, http.MethodGet, "/api/charts/monthly?category="+string(food.ID), nil))
	require.Len(t, points, 2)
	assert.Equal(t, int64(-2000), points[1].Value.Cents)

	shares := decode[[]core.CategoryShare](t, ts.do(t, http.MethodGet, "/api/charts/categories?kind=Income", nil))
	require.Len(t, shares, 1)
	assert.Equal(t, salary.ID, shares[0].CategoryID)
	assert.Equal(t, int64(10000), shares[0].ShareBP)
}

func TestPreferences(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPut, "/api/preferences", map[string]string{"selectedType": "income", "currencyCode": "usd"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	snap := decode[ledger.Snapshot](t, rr)
	assert.Equal(t, core.KindIncome, snap.SelectedType)
	assert.Equal(t, "USD", snap.CurrencyCode)

	// An invalid type leaves the currency untouched too.
	rr = ts.do(t, http.MethodPut, "/api/preferences", map[string]string{"selectedType": "both", "currencyCode": "GBP"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "USD", ts.ledger.Snapshot().CurrencyCode)
}

func TestReloadFailureKeepsState(t *testing.T) {
	ts := newTestServer(t, failingFetcher{})
	ts.createCategory(t, "Food")

	rr := ts.do(t, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Len(t, ts.ledger.Snapshot().Categories, 1)
}

func TestReloadReadsStore(t *testing.T) {
	ts := newTestServer(t, nil)
	cat := core.Category{ID: "c1", Name: "Rent", Color: core.DefaultColor, Symbol: core.SymbolRent}
	require.NoError(t, ts.store.Save(context.Background(), gateway.CategoryRecord(cat)))
	require.NoError(t, ts.store.Save(context.Background(), gateway.TransactionRecord(core.Transaction{
		ID: "t1", Title: "June", Amount: core.NewMoney(80000), Date: core.NewDate(2025, 6, 1),
		Kind: core.KindExpense, CategoryID: "c1",
	})))

	rr := ts.do(t, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decode[ledger.ReloadReport](t, rr)
	assert.Equal(t, 1, report.Categories)
	assert.Equal(t, 1, report.Transactions)
	assert.Equal(t, int64(-80000), ts.ledger.Totals().Amount.Cents)
}

func TestSyncEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/sync/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"enqueued":7`)
	assert.Contains(t, rr.Body.String(), "boom")

	rr = ts.do(t, http.MethodPost, "/api/sync/retry", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, map[string]int{"requeued": 1}, decode[map[string]int](t, rr))
	assert.Equal(t, 1, ts.sync.retried)
}

func TestSyncEndpointsWithoutDispatcher(t *testing.T) {
	l := ledger.New(ledger.Options{})
	srv := NewServer(":0", l, Options{})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sync/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMutationsAreRateLimited(t *testing.T) {
	l := ledger.New(ledger.Options{})
	srv := NewServer(":0", l, Options{RateLimitPerMinute: 1})
	defer srv.Shutdown(context.Background())

	post := func() int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(`{"name":"A"}`))
		req.RemoteAddr = "203.0.113.5:1234"
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ledger", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebSocketFeed(t *testing.T) {
	ts := newTestServer(t, nil)
	httpSrv := httptest.NewServer(ts.Handler)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() snapshotMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg snapshotMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	initial := read()
	assert.Equal(t, "snapshot", initial.Type)
	assert.Empty(t, initial.Snapshot.Categories)

	_, err = ts.ledger.AddCategory("Food", core.DefaultColor, core.DefaultSymbol)
	require.NoError(t, err)

	next := read()
	require.Len(t, next.Snapshot.Categories, 1)
	assert.Equal(t, "Food", next.Snapshot.Categories[0].Name)
	assert.Greater(t, next.Snapshot.Version, initial.Snapshot.Version)
}
