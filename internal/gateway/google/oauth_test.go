package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const installedClient = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"s3cret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

func TestLoadOAuthClient(t *testing.T) {
	cfg, err := LoadOAuthClient(installedClient, "")
	if err != nil {
		t.Fatalf("LoadOAuthClient() error: %v", err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != "https://www.googleapis.com/auth/spreadsheets" {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}

	path := filepath.Join(t.TempDir(), "client.json")
	if err := os.WriteFile(path, []byte(installedClient), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOAuthClient("", path); err != nil {
		t.Errorf("LoadOAuthClient(file) error: %v", err)
	}

	if _, err := LoadOAuthClient("", ""); err == nil {
		t.Error("expected error without any client")
	}
	if _, err := LoadOAuthClient(`{"nope":{}}`, ""); err == nil {
		t.Error("expected error for an unrecognised client")
	}
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %v, want 0600", perm)
	}

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error: %v", err)
	}
	if got.RefreshToken != "refresh" || !got.Expiry.Equal(tok.Expiry) {
		t.Errorf("LoadToken() = %+v", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(empty, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(empty); err == nil {
		t.Error("expected error for a token file without tokens")
	}
}

func TestClientOptionsPrefersToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	if err := SaveToken(tokenPath, &oauth2.Token{RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}

	opts, err := clientOptions(context.Background(), Options{
		OAuthTokenFile:  tokenPath,
		OAuthClientJSON: installedClient,
		CredentialsJSON: "ignored",
	})
	if err != nil {
		t.Fatalf("clientOptions() error: %v", err)
	}
	if len(opts) != 1 {
		t.Errorf("expected a single token source option, got %d", len(opts))
	}

	if _, err := clientOptions(context.Background(), Options{OAuthTokenFile: tokenPath}); err == nil {
		t.Error("token without client should fail")
	}
	if _, err := clientOptions(context.Background(), Options{}); err == nil {
		t.Error("no credentials should fail")
	}
	opts, err = clientOptions(context.Background(), Options{CredentialsJSON: `{"type":"service_account"}`})
	if err != nil || len(opts) != 2 {
		t.Errorf("service account options = %d, %v", len(opts), err)
	}
}
