package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig parses an OAuth client ("installed" or "web") downloaded from
// the Google Cloud console, scoped for spreadsheets.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// LoadOAuthClient reads the client from inline JSON or a file, inline first.
func LoadOAuthClient(inline, file string) (*oauth2.Config, error) {
	var (
		b   []byte
		err error
	)
	switch {
	case strings.TrimSpace(inline) != "":
		b = []byte(inline)
	case strings.TrimSpace(file) != "":
		b, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	return OAuthConfig(b)
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", path)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// clientOptions picks the credentials for the Sheets client: a user OAuth
// token when a token file is configured, a service account otherwise.
func clientOptions(ctx context.Context, opts Options) ([]goption.ClientOption, error) {
	if strings.TrimSpace(opts.OAuthTokenFile) != "" {
		cfg, err := LoadOAuthClient(opts.OAuthClientJSON, opts.OAuthClientFile)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(opts.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		return []goption.ClientOption{goption.WithTokenSource(cfg.TokenSource(ctx, tok))}, nil
	}

	creds, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}
