/*
scheduler.go - Periodic ledger autosave

PURPOSE:
  The Ledger persists on stop. A crash between start and stop would lose
  every change, so the scheduler also saves a snapshot on a fixed interval.
  POST /api/admin/save triggers the same save by hand.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Skips the save when nothing changed since the last one
  - Saves never overlap: manual and scheduled saves share one mutex

CONFIGURATION:
  - Interval: How often to save (storage.autosave_interval, default 5m)
  - Enabled:  Whether the ticker runs; SaveNow works either way

USAGE:
  scheduler := NewAutosaveScheduler(ledger, store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SaveNow endpoint (manual save)
  - pharmacy/store.go: Persister
*/
package api

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// AutosaveScheduler periodically persists the Ledger.
type AutosaveScheduler struct {
	Ledger    *pharmacy.Ledger
	Persister pharmacy.Persister
	Interval  time.Duration
	Enabled   bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	saveMu   sync.Mutex
	lastSave pharmacy.Snapshot
	saved    bool
}

// NewAutosaveScheduler creates a new scheduler.
func NewAutosaveScheduler(ledger *pharmacy.Ledger, p pharmacy.Persister, logger *zap.Logger) *AutosaveScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutosaveScheduler{
		Ledger:    ledger,
		Persister: p,
		Interval:  5 * time.Minute,
		Enabled:   true,
		logger:    logger.Named("autosave"),
		stop:      make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *AutosaveScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Interval <= 0 {
		s.logger.Info("autosave disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	s.logger.Info("autosave started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler. It does not save; the caller persists on shutdown.
func (s *AutosaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.logger.Info("autosave stopped")
	}
}

func (s *AutosaveScheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			if _, err := s.saveIfChanged(context.Background()); err != nil {
				s.logger.Error("autosave failed", zap.Error(err))
			}
		case <-s.stop:
			return
		}
	}
}

// SaveNow persists the current state unconditionally.
func (s *AutosaveScheduler) SaveNow(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.save(ctx, s.Ledger.Snapshot())
}

// saveIfChanged reports whether a save happened.
func (s *AutosaveScheduler) saveIfChanged(ctx context.Context) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap := s.Ledger.Snapshot()
	if s.saved && reflect.DeepEqual(snap, s.lastSave) {
		return false, nil
	}
	if err := s.save(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AutosaveScheduler) save(ctx context.Context, snap pharmacy.Snapshot) error {
	start := time.Now()
	if err := s.Persister.Save(ctx, snap); err != nil {
		return err
	}
	s.lastSave = snap
	s.saved = true
	s.logger.Debug("ledger saved",
		zap.Int("medicines", len(snap.Medicines)),
		zap.Int("prescriptions", len(snap.Prescriptions)),
		zap.Int("transactions", len(snap.Transactions)),
		zap.Duration("duration", time.Since(start)))
	return nil
}
