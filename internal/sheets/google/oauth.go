package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetbuddy/internal/log"
)

// ErrNoToken means an OAuth client is configured but the user has not
// authorized it yet.
var ErrNoToken = errors.New("no stored Google token; run `budget sheets-auth` first")

// OAuthOptions locate an installed-app OAuth client and the user token
// obtained for it by Authorize.
type OAuthOptions struct {
	ClientJSON string
	ClientFile string
	TokenFile  string
}

func (o OAuthOptions) enabled() bool {
	return strings.TrimSpace(o.ClientJSON) != "" || strings.TrimSpace(o.ClientFile) != ""
}

// OAuthConfig reads the client credentials and scopes them to spreadsheets.
func OAuthConfig(o OAuthOptions) (*oauth2.Config, error) {
	var b []byte
	switch {
	case strings.TrimSpace(o.ClientJSON) != "":
		b = []byte(o.ClientJSON)
	case strings.TrimSpace(o.ClientFile) != "":
		var err error
		if b, err = os.ReadFile(o.ClientFile); err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// LoadToken reads a token saved by SaveToken. A missing file is ErrNoToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// Authorize runs the installed-app flow. It listens on localhost:port for
// the redirect, hands the consent URL to prompt and exchanges the returned
// code. Port "0" picks a free port. The redirect URI must be registered on
// the OAuth client.
func Authorize(ctx context.Context, cfg *oauth2.Config, port string, prompt func(url string), logger *log.Logger) (*oauth2.Token, error) {
	logger = log.OrDiscard(logger).WithComponent(log.ComponentSheets)

	ln, err := net.Listen("tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}
	_, actualPort, _ := net.SplitHostPort(ln.Addr().String())

	conf := *cfg
	conf.RedirectURL = "http://localhost:" + actualPort + "/callback"
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	deliver := func(r result) {
		select {
		case results <- r:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			deliver(result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			deliver(result{code: q.Get("code")})
		}
	})
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	logger.DebugContext(ctx, "Waiting for OAuth redirect", "redirect_url", conf.RedirectURL)
	prompt(conf.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization not completed: %w", ctx.Err())
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		tok, err := conf.Exchange(ctx, r.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	}
}
