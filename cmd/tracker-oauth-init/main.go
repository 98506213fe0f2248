// Command tracker-oauth-init authorizes the Sheets backend with a user
// account and stores the token at GOOGLE_OAUTH_TOKEN_FILE.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"tracker/internal/cli"
	"tracker/internal/gateway/google"
	applog "tracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(nil, applog.ComponentApp)

	cfg, err := google.LoadOAuthClient(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"), os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))
	if err != nil {
		logger.Error("Failed to load OAuth client", applog.FieldError, err)
		os.Exit(1)
	}

	// The OAuth client must list http://localhost:<port>/callback as an
	// authorized redirect URI.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case code := <-codeCh:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			logger.Error("Token exchange failed", applog.FieldError, err)
			os.Exit(1)
		}
		outFile := os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")
		if outFile == "" {
			outFile = "token.json"
		}
		if err := google.SaveToken(outFile, tok); err != nil {
			logger.Error("Failed to save token", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Saved token", "path", outFile)
	case <-time.After(5 * time.Minute):
		logger.Error("Authorization timed out")
		os.Exit(1)
	case <-sigCh:
		logger.Error("Interrupted")
		os.Exit(1)
	}
}
