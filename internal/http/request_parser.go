// Package http exposes the ledger as a JSON API with a websocket feed.
//
// This file implements decoding and validation of request bodies and query
// parameters into core types.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tracker/internal/chart"
	"tracker/internal/core"
	"tracker/internal/ledger"
)

const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("empty body")

// decodeJSON reads exactly one JSON object into dst. Unknown fields and
// trailing data are rejected. Every failure is a validation error on "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Invalid("body", errEmptyBody)
		}
		return core.Invalid("body", err)
	}
	if dec.More() {
		return core.Invalid("body", errors.New("unexpected data after JSON object"))
	}
	return nil
}

// CategoryRequest is the body of POST and PUT /api/categories.
// Empty color and symbol fall back to the defaults.
type CategoryRequest struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Symbol string `json:"symbol"`
}

// CategoryInput is a parsed CategoryRequest.
type CategoryInput struct {
	Name   string
	Color  core.Color
	Symbol core.Symbol
}

func (req CategoryRequest) Parse() (CategoryInput, error) {
	in := CategoryInput{
		Name:   sanitizeInput(req.Name),
		Color:  core.DefaultColor,
		Symbol: core.DefaultSymbol,
	}
	if c := strings.TrimSpace(req.Color); c != "" {
		parsed, err := core.ParseColor(c)
		if err != nil {
			return CategoryInput{}, core.Invalid("color", err)
		}
		in.Color = parsed
	}
	if s := strings.TrimSpace(req.Symbol); s != "" {
		parsed, err := core.ParseSymbol(s)
		if err != nil {
			return CategoryInput{}, core.Invalid("symbol", err)
		}
		in.Symbol = parsed
	}
	return in, nil
}

// TransactionRequest is the body of POST /api/transactions. A missing date
// means today.
type TransactionRequest struct {
	Title    string          `json:"title"`
	Amount   *core.Money     `json:"amount"`
	Date     *core.Date      `json:"date"`
	Category core.CategoryID `json:"category"`
	Type     string          `json:"type"`
}

// TransactionInput is a parsed TransactionRequest.
type TransactionInput struct {
	Title      string
	Amount     core.Money
	Date       core.Date
	CategoryID core.CategoryID
	Kind       core.Kind
}

func (req TransactionRequest) Parse(now time.Time) (TransactionInput, error) {
	if req.Amount == nil {
		return TransactionInput{}, core.Invalid("amount", core.ErrInvalidAmount)
	}
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		return TransactionInput{}, core.Invalid("type", err)
	}
	date := core.DateOf(now)
	if req.Date != nil {
		date = *req.Date
	}
	return TransactionInput{
		Title:      sanitizeInput(req.Title),
		Amount:     *req.Amount,
		Date:       date,
		CategoryID: core.CategoryID(strings.TrimSpace(string(req.Category))),
		Kind:       kind,
	}, nil
}

// TransactionPatchRequest is the body of PUT /api/transactions/{id}.
// Absent fields keep their current value.
type TransactionPatchRequest struct {
	Title    *string          `json:"title"`
	Amount   *core.Money      `json:"amount"`
	Date     *core.Date       `json:"date"`
	Category *core.CategoryID `json:"category"`
	Type     *string          `json:"type"`
}

func (req TransactionPatchRequest) Parse() (ledger.TransactionPatch, error) {
	patch := ledger.TransactionPatch{
		Amount:     req.Amount,
		Date:       req.Date,
		CategoryID: req.Category,
	}
	if req.Title != nil {
		title := sanitizeInput(*req.Title)
		patch.Title = &title
	}
	if req.Type != nil {
		kind, err := core.ParseKind(*req.Type)
		if err != nil {
			return ledger.TransactionPatch{}, core.Invalid("type", err)
		}
		patch.Kind = &kind
	}
	return patch, nil
}

// PreferencesRequest is the body of PUT /api/preferences.
type PreferencesRequest struct {
	SelectedType *string `json:"selectedType"`
	CurrencyCode *string `json:"currencyCode"`
}

// parseKindParam reads an optional kind from the query string.
func parseKindParam(query url.Values) (core.Kind, error) {
	raw := strings.TrimSpace(query.Get("kind"))
	if raw == "" {
		return "", nil
	}
	kind, err := core.ParseKind(raw)
	if err != nil {
		return "", core.Invalid("kind", err)
	}
	return kind, nil
}

// parseChartQuery builds a chart.Query from ?kind= and ?category=.
func parseChartQuery(query url.Values) (chart.Query, error) {
	kind, err := parseKindParam(query)
	if err != nil {
		return chart.Query{}, err
	}
	return chart.Query{
		Kind:       kind,
		CategoryID: core.CategoryID(strings.TrimSpace(query.Get("category"))),
	}, nil
}

// requireKindParam is parseKindParam for endpoints where kind is mandatory.
func requireKindParam(query url.Values) (core.Kind, error) {
	kind, err := parseKindParam(query)
	if err != nil {
		return "", err
	}
	if kind == "" {
		return "", core.Invalid("kind", fmt.Errorf("%w: required", core.ErrInvalidKind))
	}
	return kind, nil
}
