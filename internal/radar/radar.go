// Package radar implements the periodic alert scanner: on every tick it
// re-runs the filter pipeline and match scorer against the catalog under
// the user's alert settings and surfaces new matches as alerts,
// deduplicated against everything already seen.
package radar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/scholarseek/engine/internal/engine"
	"github.com/scholarseek/engine/internal/models"
	"go.uber.org/zap"
)

// ErrScanInFlight is returned when a tick arrives while a previous scan
// is still running; the new tick is skipped entirely rather than
// interleaved.
var ErrScanInFlight = errors.New("radar: scan already in flight")

// Clock abstracts time for the scan loop so tests drive ticks manually.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

// ScanResult summarizes one tick.
type ScanResult struct {
	Scanned     int            `json:"scanned"`
	NewAlerts   []models.Alert `json:"new_alerts"`
	FetchFailed bool           `json:"fetch_failed"`
}

// Stats are the rolling counters shown on the radar screen.
type Stats struct {
	AlertsToday    int     `json:"alerts_today"`
	AlertsThisWeek int     `json:"alerts_this_week"`
	TotalAlerts    int     `json:"total_alerts"`
	TotalScanned   int     `json:"total_scanned"`
	MatchRate      float64 `json:"match_rate"` // alerts / opportunities scanned
}

// Radar owns the scan loop. Filtering and scoring are pure; the only
// mutable state is the seen set, the alert list, and the counters, all
// guarded by mu. Settings and profile edits become visible to the NEXT
// scan: each tick works on a snapshot taken at tick start.
type Radar struct {
	provider CatalogProvider
	sink     NotificationSink
	logger   *zap.Logger
	clock    Clock

	mu       sync.Mutex
	settings models.AlertSettings
	profile  models.UserProfile
	seen     map[uuid.UUID]struct{}
	alerts   []models.Alert
	scanned  int

	scanning atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a radar with the real clock and default alert settings.
func New(provider CatalogProvider, sink NotificationSink, logger *zap.Logger) *Radar {
	return NewWithClock(provider, sink, logger, realClock{})
}

// NewWithClock injects the clock, for tests.
func NewWithClock(provider CatalogProvider, sink NotificationSink, logger *zap.Logger, clock Clock) *Radar {
	return &Radar{
		provider: provider,
		sink:     sink,
		logger:   logger,
		clock:    clock,
		settings: models.DefaultAlertSettings(),
		seen:     make(map[uuid.UUID]struct{}),
	}
}

// UpdateSettings replaces the alert settings. Takes effect on the next
// scan; an in-flight scan keeps its snapshot.
func (r *Radar) UpdateSettings(settings models.AlertSettings) {
	r.mu.Lock()
	r.settings = settings
	r.mu.Unlock()
}

// UpdateProfile replaces the matching profile. Same visibility rules as
// UpdateSettings.
func (r *Radar) UpdateProfile(profile models.UserProfile) {
	r.mu.Lock()
	r.profile = profile
	r.mu.Unlock()
}

// SeedSeen pre-marks opportunities as already alerted. Hosts use it to
// suppress alerts for opportunities the user saved before the radar
// existed.
func (r *Radar) SeedSeen(saved models.SavedSet) {
	r.mu.Lock()
	for id := range saved {
		r.seen[id] = struct{}{}
	}
	r.mu.Unlock()
}

// Start launches the periodic scan loop. Returns an error if the radar
// is already running. Cancel the context or call Stop to halt it.
func (r *Radar) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return errors.New("radar: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.loop(ctx, done)
	return nil
}

// Stop cancels the pending timer and waits for the loop to exit. A scan
// interrupted by Stop emits no partial alerts.
func (r *Radar) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Radar) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := r.snapshot().ScanFrequency.Interval()
	ticker := r.clock.NewTicker(interval)
	// The ticker is swapped on frequency changes; stop whichever one is
	// live when the loop exits.
	defer func() { ticker.Stop() }()

	r.logger.Info("radar started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("radar stopped")
			return
		case <-ticker.C():
			if _, err := r.ScanOnce(ctx); err != nil {
				if errors.Is(err, ErrScanInFlight) {
					r.logger.Debug("previous scan still running; tick skipped")
				} else if !errors.Is(err, context.Canceled) {
					r.logger.Warn("scan failed", zap.Error(err))
				}
			}

			// Pick up a changed scan frequency without a restart.
			if next := r.snapshot().ScanFrequency.Interval(); next != interval {
				ticker.Stop()
				interval = next
				ticker = r.clock.NewTicker(interval)
				r.logger.Info("scan frequency changed", zap.Duration("interval", interval))
			}
		}
	}
}

func (r *Radar) snapshot() models.AlertSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// ScanOnce runs a single scan: guard, snapshot, fetch, filter, score,
// dedup, commit, deliver. Safe to call manually alongside the loop; a
// concurrent call gets ErrScanInFlight.
func (r *Radar) ScanOnce(ctx context.Context) (*ScanResult, error) {
	if !r.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInFlight
	}
	defer r.scanning.Store(false)

	// Snapshot at tick start: user edits land on the next scan.
	r.mu.Lock()
	settings := r.settings
	profile := r.profile
	seen := make(map[uuid.UUID]struct{}, len(r.seen))
	for id := range r.seen {
		seen[id] = struct{}{}
	}
	r.mu.Unlock()

	now := r.clock.Now()

	catalog, err := r.provider.GetAll(ctx)
	if err != nil {
		// Soft failure: zero new alerts this tick, retry on the next.
		r.logger.Warn("catalog fetch failed", zap.Error(err))
		return &ScanResult{FetchFailed: true}, nil
	}

	filtered := engine.Filter(catalog, engine.Criteria{
		MinAmount:  settings.MinAmount,
		MaxAmount:  settings.MaxAmount,
		Categories: settings.Categories,
		SortBy:     engine.SortDeadline,
	}, now)

	var fresh []models.Alert
	for _, opp := range filtered {
		urgency := engine.UrgencyFor(opp.Deadline, now)
		if !urgencyAllowed(settings.Urgencies, urgency) {
			continue
		}
		if _, ok := seen[opp.ID]; ok {
			continue
		}

		fresh = append(fresh, models.Alert{
			ID:            uuid.New(),
			OpportunityID: opp.ID,
			Name:          opp.Title,
			Amount:        opp.Amount,
			Description:   opp.Description,
			Deadline:      opp.Deadline,
			MatchPercent:  engine.MatchPercent(opp, profile, settings, now),
			Urgency:       urgency,
			IsUrgent:      urgency == models.UrgencyHigh,
			CreatedAt:     now,
		})
	}

	// A cancelled scan must not emit partial alerts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, alert := range fresh {
		r.seen[alert.OpportunityID] = struct{}{}
	}
	r.alerts = append(r.alerts, fresh...)
	r.scanned += len(catalog)
	r.mu.Unlock()

	if settings.PushNotifications || settings.EmailNotifications {
		for _, alert := range fresh {
			if err := r.sink.Deliver(ctx, alert); err != nil {
				r.logger.Warn("alert delivery failed",
					zap.String("opportunity", alert.Name),
					zap.Error(err),
				)
			}
		}
	}

	r.logger.Info("scan complete",
		zap.Int("scanned", len(catalog)),
		zap.Int("matched", len(filtered)),
		zap.Int("new_alerts", len(fresh)),
	)

	return &ScanResult{Scanned: len(catalog), NewAlerts: fresh}, nil
}

func urgencyAllowed(accepted []models.Urgency, u models.Urgency) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		if a == u {
			return true
		}
	}
	return false
}

// Alerts returns a copy of every alert produced so far, newest last.
func (r *Radar) Alerts() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// MarkRead flips the read flag on one alert. Returns false when the
// alert is unknown.
func (r *Radar) MarkRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].Read = true
			return true
		}
	}
	return false
}

// Stats reports the rolling counters relative to the clock's now.
func (r *Radar) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	s := Stats{TotalAlerts: len(r.alerts), TotalScanned: r.scanned}
	for _, alert := range r.alerts {
		if alert.CreatedAt.After(dayAgo) {
			s.AlertsToday++
		}
		if alert.CreatedAt.After(weekAgo) {
			s.AlertsThisWeek++
		}
	}
	if r.scanned > 0 {
		s.MatchRate = float64(len(r.alerts)) / float64(r.scanned)
	}
	return s
}
