// Package api is the client for the remote persistence service: login,
// signup, and transaction CRUD over JSON.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

const maxErrorBody = 64 << 10

// Client talks to the remote store. It holds no credential; callers pass
// the bearer token on each transaction call.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *log.Logger
}

// NewClient creates a client for baseURL (e.g. "https://budget.example.com").
// A nil httpClient gets NewHTTPClient(30s).
func NewClient(baseURL string, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must use http or https", baseURL)
	}
	logger = log.OrDiscard(logger).WithComponent(log.ComponentAPI)
	if httpClient == nil {
		httpClient = NewHTTPClient(30*time.Second, logger)
	}
	return &Client{baseURL: u, http: httpClient, log: logger}, nil
}

// NewHTTPClient creates a pooled HTTP client whose transport logs every call.
func NewHTTPClient(timeout time.Duration, logger *log.Logger) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: log.NewTransport(transport, logger),
		Timeout:   timeout,
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("login: response carried no token")
	}
	return out.Token, nil
}

// Signup registers a new account. It does not log in.
func (c *Client) Signup(ctx context.Context, email, password, inviteCode string) (Account, error) {
	var out Account
	req := signupRequest{Email: email, Password: password, InviteCode: inviteCode}
	if err := c.do(ctx, "signup", http.MethodPost, "/api/auth/signup", "", req, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

// ListTransactions returns every transaction visible to token, in server
// order. Records with an unparseable amount or date are kept with the field
// zeroed and logged.
func (c *Client) ListTransactions(ctx context.Context, token string) ([]core.Transaction, error) {
	var payload []transactionPayload
	if err := c.do(ctx, "list transactions", http.MethodGet, "/api/transactions", token, nil, &payload); err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(payload))
	for _, p := range payload {
		tx, ok := p.toTransaction()
		if !ok {
			c.log.WarnContext(ctx, "Remote transaction has malformed fields",
				log.FieldTxID, p.ID.String(),
				"amount", string(p.Amount),
				log.FieldDate, string(p.Date))
		}
		out = append(out, tx)
	}
	return out, nil
}

// CreateTransaction posts tx (without id) and returns the stored record with
// its server-assigned id.
func (c *Client) CreateTransaction(ctx context.Context, token string, tx core.Transaction) (core.Transaction, error) {
	var payload transactionPayload
	if err := c.do(ctx, "create transaction", http.MethodPost, "/api/transactions", token, newTransactionBody(tx), &payload); err != nil {
		return core.Transaction{}, err
	}
	created, ok := payload.toTransaction()
	if created.ID == "" {
		return core.Transaction{}, errors.New("create transaction: response carried no id")
	}
	if !ok {
		// The server acknowledged the record; fall back to what was sent for
		// fields it echoed back malformed.
		if created.Amount.Cents <= 0 {
			created.Amount = tx.Amount
		}
		if created.Date.IsZero() {
			created.Date = tx.Date
		}
	}
	if created.Type == "" {
		created.Type = tx.Type
	}
	if created.Category == "" {
		created.Category = tx.Category
	}
	return created, nil
}

// UpdateTransaction replaces the editable fields of id with tx's values.
func (c *Client) UpdateTransaction(ctx context.Context, token string, id core.ID, tx core.Transaction) error {
	var ack ackResponse
	op := "update transaction"
	if err := c.do(ctx, op, http.MethodPut, transactionPath(id), token, newTransactionBody(tx), &ack); err != nil {
		return err
	}
	return ack.check(op)
}

// DeleteTransaction removes id from the remote store.
func (c *Client) DeleteTransaction(ctx context.Context, token string, id core.ID) error {
	var ack ackResponse
	op := "delete transaction"
	if err := c.do(ctx, op, http.MethodDelete, transactionPath(id), token, nil, &ack); err != nil {
		return err
	}
	return ack.check(op)
}

func (a ackResponse) check(op string) error {
	if a.Success != nil && !*a.Success {
		return &StatusError{Op: op, StatusCode: http.StatusOK, Message: a.Error}
	}
	return nil
}

func transactionPath(id core.ID) string {
	return "/api/transactions/" + url.PathEscape(id.String())
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var er errorResponse
	if json.Unmarshal(data, &er) == nil {
		if er.Error != "" {
			return er.Error
		}
		return er.Message
	}
	return ""
}
