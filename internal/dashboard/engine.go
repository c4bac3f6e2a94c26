// Package dashboard derives the summary views shown to the user from ledger
// snapshots.
package dashboard

import (
	"sync"
	"time"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/ledger"
	"budgetbuddy/internal/log"
)

// View is an aggregate over one snapshot, optionally limited to a month.
type View struct {
	Version      uint64
	Month        Month
	Summary      core.Summary
	Balance      core.Money
	Categories   []core.CategoryAmount
	Transactions []core.Transaction // newest date first
	Err          error
}

type viewKey struct {
	version uint64
	month   Month
}

// Engine recomputes views from scratch for every snapshot and memoizes them
// per snapshot version and month.
type Engine struct {
	log   *log.Logger
	views cache.Cache[viewKey, View]

	mu       sync.Mutex
	snap     ledger.Snapshot
	computed int
	subs     []func(View)
}

func NewEngine(cacheSize int, ttl time.Duration, logger *log.Logger) *Engine {
	return &Engine{
		log:   log.OrDiscard(logger).WithComponent(log.ComponentDashboard),
		views: cache.NewLRUCache[viewKey, View](cacheSize, ttl),
	}
}

// Attach seeds the engine with the store's current snapshot and follows it
// until the returned function is called.
func (e *Engine) Attach(store *ledger.Store) (detach func()) {
	cancel := store.Subscribe(e.Observe)
	e.Observe(store.Snapshot())
	return cancel
}

// OnView registers fn to receive the unfiltered view of every new snapshot.
func (e *Engine) OnView(fn func(View)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

// Observe accepts a snapshot. Snapshots older than the current one are
// ignored.
func (e *Engine) Observe(snap ledger.Snapshot) {
	e.mu.Lock()
	if snap.Version < e.snap.Version {
		e.mu.Unlock()
		return
	}
	e.snap = snap
	view := e.viewLocked(Month{})
	subs := make([]func(View), len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	e.log.Debug("Summary recomputed",
		log.FieldVersion, snap.Version,
		log.FieldCount, view.Summary.Count,
		"skipped", view.Summary.Skipped)
	for _, fn := range subs {
		fn(view)
	}
}

// View returns the aggregate for month over the latest snapshot.
func (e *Engine) View(month Month) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked(month)
}

func (e *Engine) Summary() core.Summary {
	return e.View(Month{}).Summary
}

func (e *Engine) viewLocked(month Month) View {
	key := viewKey{version: e.snap.Version, month: month}
	if v, ok := e.views.Get(key); ok {
		return v
	}
	v := compute(e.snap, month)
	e.computed++
	e.views.Set(key, v)
	return v
}

func compute(snap ledger.Snapshot, month Month) View {
	txs := snap.SortedByDate()
	if !month.IsZero() {
		txs = core.InMonth(txs, month.Year, int(month.Month))
	}
	summary := core.Summarize(txs)
	return View{
		Version:      snap.Version,
		Month:        month,
		Summary:      summary,
		Balance:      summary.Balance(),
		Categories:   summary.Categories(),
		Transactions: txs,
		Err:          snap.Err,
	}
}
