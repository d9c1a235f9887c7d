// Command demo-hostapp is a minimal host application showing how to mount
// authbase: email/password auth with verification and reset flows, plus
// Google and Github OAuth sign-in, backed by Postgres (or a local file
// store when no DSN is configured).
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	ab "github.com/panyam/authbase"
	oa2 "github.com/panyam/authbase/oauth2"
	"github.com/panyam/authbase/stores"
	gormstore "github.com/panyam/authbase/stores/gorm"
)

func main() {
	cfg, err := ab.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	accounts, err := openAccountStore(cfg)
	if err != nil {
		log.Fatalf("opening account store: %v", err)
	}

	session := scs.New()
	session.Lifetime = cfg.SessionTimeout

	auth := ab.New(cfg.AppName)
	auth.Accounts = accounts
	auth.Session = session
	auth.SessionTimeoutInSeconds = int(cfg.SessionTimeout / time.Second)
	if cfg.JWTSecretKey != "" {
		auth.Issuer.SecretKey = cfg.JWTSecretKey
	}
	auth.Middleware.SessionGetter = func(r *http.Request, param string) any {
		return session.GetString(r.Context(), param)
	}

	auth.AddLocal(&ab.LocalAuth{
		Accounts:    accounts,
		EmailSender: &ab.ConsoleEmailSender{},
		BaseURL:     cfg.BaseURL,
	})

	if cfg.GoogleClientID != "" {
		auth.AddAuth("/google", oa2.NewGoogleOAuth2(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL,
			func(profile ab.OAuthProfile, _ *oauth2.Token, w http.ResponseWriter, r *http.Request) {
				auth.SaveUserAndRedirect(profile, w, r)
			}))
	}
	if cfg.GithubClientID != "" {
		auth.AddAuth("/github", oa2.NewGithubOAuth2(
			cfg.GithubClientID, cfg.GithubClientSecret, cfg.GithubCallbackURL,
			func(profile ab.OAuthProfile, _ *oauth2.Token, w http.ResponseWriter, r *http.Request) {
				auth.SaveUserAndRedirect(profile, w, r)
			}))
	}

	router := mux.NewRouter()
	router.PathPrefix("/auth/").Handler(http.StripPrefix("/auth", auth.Handler()))
	router.Handle("/me", auth.Middleware.EnsureUser(http.HandlerFunc(handleMe)))
	router.HandleFunc("/", handleHome)

	addr := os.Getenv("DEMO_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	slog.Info("starting demo host app", "addr", addr)
	if err := http.ListenAndServe(addr, session.LoadAndSave(router)); err != nil {
		log.Fatal(err)
	}
}

func openAccountStore(cfg *ab.Config) (ab.AccountStore, error) {
	if cfg.StoreDSN == "" {
		slog.Info("no store DSN configured, using local file store", "path", "/tmp/authbase-demo")
		return stores.NewFSAccountStore("/tmp/authbase-demo"), nil
	}
	db, err := gormstore.OpenShared(cfg.StoreDSN, cfg.StoreConnectTimeout)
	if err != nil {
		return nil, err
	}
	return gormstore.NewAccountStore(db), nil
}

func handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(`<html><body>
		<h1>Authbase Demo</h1>
		<p><a href="/auth/google">Sign in with Google</a></p>
		<p><a href="/auth/github">Sign in with Github</a></p>
		<p><a href="/me">Who am I?</a></p>
	</body></html>`))
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ab.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Login Required", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Logged in as " + claims.Email))
}
