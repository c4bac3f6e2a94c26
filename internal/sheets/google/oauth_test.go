package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const installedClient = `{"installed":{"client_id":"cid","client_secret":"secret",
"auth_uri":"https://accounts.example.com/auth","token_uri":"https://accounts.example.com/token",
"redirect_uris":["http://localhost"]}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig(OAuthOptions{ClientJSON: installedClient})
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if cfg.ClientID != "cid" || cfg.Endpoint.TokenURL != "https://accounts.example.com/token" {
		t.Errorf("unexpected config %+v", cfg)
	}

	path := filepath.Join(t.TempDir(), "client.json")
	if err := os.WriteFile(path, []byte(installedClient), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OAuthConfig(OAuthOptions{ClientFile: path}); err != nil {
		t.Errorf("OAuthConfig from file: %v", err)
	}
	if _, err := OAuthConfig(OAuthOptions{}); err == nil {
		t.Error("expected error without client")
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	if _, err := LoadToken(path); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	want := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}
	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v", info.Mode().Perm())
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.AccessToken != "at" || got.RefreshToken != "rt" {
		t.Errorf("unexpected token %+v", got)
	}
}

func TestNewWithOAuthWithoutToken(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID: "x",
		OAuth: OAuthOptions{
			ClientJSON: installedClient,
			TokenFile:  filepath.Join(t.TempDir(), "missing.json"),
		},
	}, nil)
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "abc" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","refresh_token":"rt","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// follow plays the browser: it hits the redirect URI from the consent URL
// with extra query values.
func follow(t *testing.T, consentURL string, extra url.Values) {
	t.Helper()
	u, err := url.Parse(consentURL)
	if err != nil {
		t.Errorf("parse consent url: %v", err)
		return
	}
	q := u.Query()
	if extra.Get("state") == "" {
		extra.Set("state", q.Get("state"))
	}
	resp, err := http.Get(q.Get("redirect_uri") + "?" + extra.Encode())
	if err != nil {
		t.Errorf("callback: %v", err)
		return
	}
	resp.Body.Close()
}

func TestAuthorize(t *testing.T) {
	tokenSrv := newTokenServer(t)
	cfg := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenSrv.URL},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tok, err := Authorize(ctx, cfg, "0", func(u string) {
		follow(t, u, url.Values{"code": {"abc"}})
	}, nil)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" {
		t.Errorf("unexpected token %+v", tok)
	}
}

func TestAuthorizeDenied(t *testing.T) {
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Authorize(ctx, cfg, "0", func(u string) {
		follow(t, u, url.Values{"error": {"access_denied"}})
	}, nil)
	if err == nil {
		t.Fatal("expected error when consent is denied")
	}
}

func TestAuthorizeCancelled(t *testing.T) {
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Authorize(ctx, cfg, "0", func(string) {}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
