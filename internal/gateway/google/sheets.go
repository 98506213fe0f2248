package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"tracker/internal/cache"
	"tracker/internal/gateway"
)

// Options configures the Sheets record store.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	// OAuthTokenFile switches from the service account to a user token
	// obtained with cmd/tracker-oauth-init.
	OAuthTokenFile  string
	OAuthClientJSON string
	OAuthClientFile string
	CategoriesTab   string
	TransactionsTab string
	RowCacheSize    int
	RowCacheTTL     time.Duration
}

// Store keeps one tab per record kind. Row 1 holds the header
// ("id" followed by the record fields); each following row is one record.
type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          map[gateway.Kind]string
	// kind/id -> 1-based sheet row
	rows *cache.LRUCache[int]
}

var _ gateway.RecordStore = (*Store)(nil)

// New creates a Sheets client using service account credentials, or a
// user OAuth token when OAuthTokenFile is set.
func New(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	clientOpts, err := clientOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return newStore(svc, opts), nil
}

func newStore(svc *gsheet.Service, opts Options) *Store {
	if opts.CategoriesTab == "" {
		opts.CategoriesTab = "Categories"
	}
	if opts.TransactionsTab == "" {
		opts.TransactionsTab = "Transactions"
	}
	if opts.RowCacheSize <= 0 {
		opts.RowCacheSize = 5000
	}
	if opts.RowCacheTTL <= 0 {
		opts.RowCacheTTL = 10 * time.Minute
	}
	return &Store{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		tabs: map[gateway.Kind]string{
			gateway.KindCategories:   opts.CategoriesTab,
			gateway.KindTransactions: opts.TransactionsTab,
		},
		rows: cache.NewLRUCache[int](opts.RowCacheSize, opts.RowCacheTTL),
	}
}

// RowCache exposes the id->row cache so callers can register it for cleanup.
func (s *Store) RowCache() *cache.LRUCache[int] { return s.rows }

func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// EnsureHeaders writes the header row of every tab.
func (s *Store) EnsureHeaders(ctx context.Context) error {
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	for _, kind := range gateway.Kinds() {
		rng := fmt.Sprintf("%s!A1:%s1", s.tabs[kind], lastColumn(kind))
		vr := &gsheet.ValueRange{Values: [][]interface{}{headerRow(kind)}}
		if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write %s header: %w", kind, err)
		}
	}
	return nil
}

func (s *Store) FetchAll(ctx context.Context, kind gateway.Kind) ([]gateway.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if s.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", s.tabs[kind], lastColumn(kind))
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	recs, rows := parseRecords(kind, resp.Values)
	for id, row := range rows {
		s.rows.Set(cacheKey(kind, id), row)
	}
	return recs, nil
}

func (s *Store) Save(ctx context.Context, r gateway.Record) error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, found, err := s.locate(ctx, r.Kind, r.ID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{rowValues(r)}}

	if found {
		rng := fmt.Sprintf("%s!A%d:%s%d", s.tabs[r.Kind], row, lastColumn(r.Kind), row)
		if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			s.rows.Delete(cacheKey(r.Kind, r.ID))
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", s.tabs[r.Kind], lastColumn(r.Kind))
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	if resp.Updates != nil {
		if n, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.rows.Set(cacheKey(r.Kind, r.ID), n)
		}
	}
	return nil
}

// Delete clears the record's row. Rows are not shifted so cached row
// numbers of other records stay valid.
func (s *Store) Delete(ctx context.Context, kind gateway.Kind, id string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	row, found, err := s.locate(ctx, kind, id)
	if err != nil || !found {
		return err
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", s.tabs[kind], row, lastColumn(kind), row)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	s.rows.Delete(cacheKey(kind, id))
	return nil
}

// locate finds the sheet row holding id, consulting the cache first.
func (s *Store) locate(ctx context.Context, kind gateway.Kind, id string) (int, bool, error) {
	if row, ok := s.rows.Get(cacheKey(kind, id)); ok {
		return row, true, nil
	}
	rng := fmt.Sprintf("%s!A:A", s.tabs[kind])
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, id)
	if row == 0 {
		return 0, false, nil
	}
	s.rows.Set(cacheKey(kind, id), row)
	return row, true, nil
}

func cacheKey(kind gateway.Kind, id string) string {
	return string(kind) + "/" + id
}
