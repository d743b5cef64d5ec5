// canteen-sheets-auth runs the OAuth consent flow once and saves a user
// token the export worker can use instead of a service account.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"

	"canteen/internal/cli"
	"canteen/internal/log"
	gsheet "canteen/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentSheets)

	clientJSON, err := gsheet.ReadOAuthClient(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"), os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))
	if err != nil {
		fatal(logger, "read client", err)
	}

	// the OAuth client must list this URI among its authorized redirects
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg, err := gsheet.OAuthConfig(clientJSON, "http://localhost:"+redirectPort+"/callback")
	if err != nil {
		fatal(logger, "oauth config", err)
	}

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + redirectPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("You may close this window and return to the terminal.\n"))
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Callback server failed", log.FieldError, err.Error())
		}
	}()
	defer func() { _ = srv.Close() }()

	logger.Info("Open this URL to authorize", "url", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			fatal(logger, "token exchange", err)
		}
		out := os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")
		if out == "" {
			out = "token.json"
		}
		if err := gsheet.SaveToken(out, tok); err != nil {
			fatal(logger, "save token", err)
		}
		logger.Info("Saved token", "path", out)
	case <-time.After(5 * time.Minute):
		logger.Error("Authorization timed out")
		os.Exit(1)
	case <-ctx.Done():
		logger.Error("Interrupted")
		os.Exit(1)
	}
}

func fatal(logger *log.Logger, op string, err error) {
	logger.Error("canteen-sheets-auth failed", log.FieldOperation, op, log.FieldError, err.Error())
	os.Exit(1)
}
