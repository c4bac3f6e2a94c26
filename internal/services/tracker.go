// Package services composes the session, ledger, editor and dashboard into
// the single object the presentation layer drives.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/dashboard"
	"budgetbuddy/internal/edit"
	"budgetbuddy/internal/ledger"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/sheets"
	"budgetbuddy/internal/worker"
)

// Remote is everything the tracker needs from the REST collaborator.
type Remote interface {
	auth.Authenticator
	ledger.Remote
}

type Options struct {
	ReconcileOnUpdate bool
	SummaryCacheSize  int
	SummaryCacheTTL   time.Duration
	FeedBuffer        int
}

// Tracker owns the wiring between components. The ledger is emptied
// whenever the credential changes, so data from one account never leaks
// into another session.
type Tracker struct {
	Session   *auth.Session
	Store     *ledger.Store
	Editor    *edit.Session
	Dashboard *dashboard.Engine
	Exporter  sheets.Exporter

	log       *log.Logger
	feed      *worker.ChangeFeed
	res       *backend.Resources
	unsub     []func()
	closeOnce sync.Once
	closeErr  error
}

// NewTracker wires the components over res. ctx bounds background
// publishing to the change feed.
func NewTracker(ctx context.Context, remote Remote, res *backend.Resources, opts Options, logger *log.Logger) *Tracker {
	logger = log.OrDiscard(logger)

	session := auth.NewSession(remote, res.TokenStore, logger)
	store := ledger.NewStore(remote, session,
		ledger.WithReconcile(opts.ReconcileOnUpdate),
		ledger.WithLogger(logger))
	engine := dashboard.NewEngine(opts.SummaryCacheSize, opts.SummaryCacheTTL, logger)

	t := &Tracker{
		Session:   session,
		Store:     store,
		Editor:    edit.NewSession(store, logger),
		Dashboard: engine,
		Exporter:  res.Exporter,
		log:       logger.WithComponent(log.ComponentApp),
		res:       res,
	}

	t.unsub = append(t.unsub,
		session.OnChange(func(string) {
			store.Reset()
			t.Editor.Reset()
		}),
		engine.Attach(store),
	)

	if res.Publisher != nil {
		buffer := opts.FeedBuffer
		if buffer == 0 {
			buffer = 64
		}
		t.feed = worker.NewChangeFeed(res.Publisher, buffer, logger)
		t.feed.Start(ctx)
		t.unsub = append(t.unsub, store.Subscribe(t.feed.Observe))
	}
	return t
}

// Start restores the persisted credential and, when there is one, loads the
// ledger. A failed load is reported but leaves the tracker usable.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.Session.Restore(ctx); err != nil {
		return err
	}
	if _, ok := t.Session.CurrentToken(); !ok {
		return nil
	}
	return t.Store.Load(ctx)
}

// Login authenticates and loads the new account's transactions.
func (t *Tracker) Login(ctx context.Context, email, password string) error {
	if _, err := t.Session.Authenticate(ctx, email, password); err != nil {
		return err
	}
	return t.Store.Load(ctx)
}

// Logout clears the credential; the ledger empties through the session
// listener.
func (t *Tracker) Logout(ctx context.Context) error {
	return t.Session.Clear(ctx)
}

// Export writes the view for month through the configured exporter.
func (t *Tracker) Export(ctx context.Context, month dashboard.Month) (sheets.Report, error) {
	if t.Exporter == nil {
		return sheets.Report{}, errors.New("no exporter configured")
	}
	view := t.Dashboard.View(month)
	if view.Err != nil {
		return sheets.Report{}, view.Err
	}
	report := sheets.Report{
		Label:        month.String(),
		Transactions: view.Transactions,
		Summary:      view.Summary,
		GeneratedAt:  time.Now(),
	}
	if err := t.Exporter.Export(ctx, report); err != nil {
		return sheets.Report{}, fmt.Errorf("export: %w", err)
	}
	return report, nil
}

// Close stops listeners, drains the change feed and releases backend
// resources.
func (t *Tracker) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		for _, fn := range t.unsub {
			fn()
		}
		var errs []error
		if t.feed != nil {
			if err := t.feed.Close(ctx); err != nil {
				t.log.Warn("Change feed not drained", log.FieldError, err.Error(), "dropped", t.feed.Dropped())
				errs = append(errs, err)
			}
		}
		if t.res.Cleanup != nil {
			errs = append(errs, t.res.Cleanup())
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}
