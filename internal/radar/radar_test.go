package radar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scholarseek/engine/internal/models"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

type fakeTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTicker) tick(at time.Time) { t.ch <- at }

type fakeCatalog struct {
	mu    sync.Mutex
	opps  []models.Opportunity
	err   error
	calls int
}

func (f *fakeCatalog) GetAll(context.Context) ([]models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.opps, nil
}

type captureSink struct {
	mu        sync.Mutex
	delivered []models.Alert
	err       error
}

func (s *captureSink) Deliver(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, alert)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func amount(v float64) *float64 { return &v }

func testOpp(title string, amt float64, deadline time.Time) models.Opportunity {
	return models.Opportunity{
		ID:       uuid.New(),
		Title:    title,
		Category: models.CategoryGeneral,
		Type:     models.TypeScholarship,
		Amount:   amount(amt),
		Deadline: &deadline,
	}
}

func newTestRadar(catalog *fakeCatalog, sink NotificationSink, clock Clock) *Radar {
	return NewWithClock(catalog, sink, zap.NewNop(), clock)
}

func TestScanOnce_ProducesAlertsAndDeduplicates(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("STEM Grant", 8000, clock.Now().Add(48*time.Hour)),
		testOpp("Art Award", 2000, clock.Now().Add(30*24*time.Hour)),
	}}
	sink := &captureSink{}
	r := newTestRadar(catalog, sink, clock)
	r.UpdateSettings(models.AlertSettings{MaxAmount: 50000, PushNotifications: true, ScanFrequency: models.ScanHourly})

	result, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.NewAlerts) != 2 {
		t.Fatalf("expected 2 new alerts, got %d", len(result.NewAlerts))
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sink.count())
	}

	// Second scan over the same catalog: everything already seen.
	result, err = r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if len(result.NewAlerts) != 0 {
		t.Fatalf("expected no repeat alerts, got %d", len(result.NewAlerts))
	}
}

func TestScanOnce_FetchFailureIsSoft(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	catalog := &fakeCatalog{err: errors.New("connection refused")}
	r := newTestRadar(catalog, &captureSink{}, clock)

	result, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("fetch failure must not be fatal: %v", err)
	}
	if !result.FetchFailed || len(result.NewAlerts) != 0 {
		t.Fatalf("expected empty soft-failed result, got %+v", result)
	}

	// Next tick retries and succeeds.
	catalog.mu.Lock()
	catalog.err = nil
	catalog.opps = []models.Opportunity{testOpp("Grant", 1000, clock.Now().Add(time.Hour))}
	catalog.mu.Unlock()

	result, err = r.ScanOnce(context.Background())
	if err != nil || len(result.NewAlerts) != 1 {
		t.Fatalf("expected recovery on next tick, got %+v err=%v", result, err)
	}
}

func TestScanOnce_InFlightGuard(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := newTestRadar(&fakeCatalog{}, &captureSink{}, clock)

	r.scanning.Store(true)
	if _, err := r.ScanOnce(context.Background()); !errors.Is(err, ErrScanInFlight) {
		t.Fatalf("expected ErrScanInFlight, got %v", err)
	}
	r.scanning.Store(false)

	if _, err := r.ScanOnce(context.Background()); err != nil {
		t.Fatalf("guard must release after the scan: %v", err)
	}
}

func TestScanOnce_CancelledScanEmitsNothing(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("Grant", 1000, clock.Now().Add(time.Hour)),
	}}
	sink := &captureSink{}
	r := newTestRadar(catalog, sink, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.ScanOnce(ctx); err == nil {
		t.Fatal("expected a context error")
	}
	if sink.count() != 0 {
		t.Fatalf("cancelled scan delivered %d alerts", sink.count())
	}
	if len(r.Alerts()) != 0 {
		t.Fatalf("cancelled scan committed %d alerts", len(r.Alerts()))
	}
}

func TestScanOnce_RespectsSettingsFilters(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)}
	soon := clock.Now().Add(48 * time.Hour)     // high urgency
	far := clock.Now().Add(60 * 24 * time.Hour) // low urgency
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("Urgent big", 9000, soon),
		testOpp("Distant big", 9000, far),
		testOpp("Urgent small", 100, soon),
	}}
	r := newTestRadar(catalog, &captureSink{}, clock)
	r.UpdateSettings(models.AlertSettings{
		MinAmount: 5000,
		MaxAmount: 20000,
		Urgencies: []models.Urgency{models.UrgencyHigh},
	})

	result, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.NewAlerts) != 1 || result.NewAlerts[0].Name != "Urgent big" {
		t.Fatalf("expected only the urgent in-range opportunity, got %+v", result.NewAlerts)
	}
	if !result.NewAlerts[0].IsUrgent {
		t.Fatal("high urgency alert must carry IsUrgent")
	}
}

func TestScanOnce_NotificationsDisabledSkipsDelivery(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("Grant", 1000, clock.Now().Add(time.Hour)),
	}}
	sink := &captureSink{}
	r := newTestRadar(catalog, sink, clock)
	r.UpdateSettings(models.AlertSettings{ScanFrequency: models.ScanHourly})

	result, err := r.ScanOnce(context.Background())
	if err != nil || len(result.NewAlerts) != 1 {
		t.Fatalf("expected the alert to be recorded, got %+v err=%v", result, err)
	}
	if sink.count() != 0 {
		t.Fatal("delivery must be skipped when both notification toggles are off")
	}
}

func TestScanOnce_DeliveryFailureDoesNotAbort(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("A", 1000, clock.Now().Add(time.Hour)),
		testOpp("B", 2000, clock.Now().Add(time.Hour)),
	}}
	sink := &captureSink{err: errors.New("push gateway down")}
	r := newTestRadar(catalog, sink, clock)
	r.UpdateSettings(models.AlertSettings{PushNotifications: true, ScanFrequency: models.ScanHourly})

	result, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("delivery failure must not fail the scan: %v", err)
	}
	if len(result.NewAlerts) != 2 {
		t.Fatalf("expected both alerts recorded despite sink errors, got %d", len(result.NewAlerts))
	}
}

func TestStats_RollingCounters(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("One", 1000, clock.Now().Add(time.Hour)),
		testOpp("Two", 2000, clock.Now().Add(time.Hour)),
	}}
	r := newTestRadar(catalog, &captureSink{}, clock)

	if _, err := r.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	stats := r.Stats()
	if stats.AlertsToday != 2 || stats.AlertsThisWeek != 2 {
		t.Fatalf("expected 2 alerts today/this week, got %+v", stats)
	}
	if stats.MatchRate != 1 {
		t.Fatalf("expected match rate 1.0, got %v", stats.MatchRate)
	}

	// Two days later the alerts age out of "today" but not "this week".
	clock.advance(48 * time.Hour)
	stats = r.Stats()
	if stats.AlertsToday != 0 || stats.AlertsThisWeek != 2 {
		t.Fatalf("expected aging counters, got %+v", stats)
	}
}

func TestUpdateSettings_VisibleNextScan(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("Cheap", 500, clock.Now().Add(time.Hour)),
	}}
	r := newTestRadar(catalog, &captureSink{}, clock)

	result, _ := r.ScanOnce(context.Background())
	if len(result.NewAlerts) != 1 {
		t.Fatalf("baseline scan should match, got %d", len(result.NewAlerts))
	}

	// Tighten the range; a fresh opportunity below it is now excluded.
	r.UpdateSettings(models.AlertSettings{MinAmount: 5000})
	catalog.mu.Lock()
	catalog.opps = append(catalog.opps, testOpp("Also cheap", 600, clock.Now().Add(time.Hour)))
	catalog.mu.Unlock()

	result, _ = r.ScanOnce(context.Background())
	if len(result.NewAlerts) != 0 {
		t.Fatalf("updated settings must apply to the next scan, got %d alerts", len(result.NewAlerts))
	}
}

func TestMarkRead(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("Grant", 1000, clock.Now().Add(time.Hour)),
	}}
	r := newTestRadar(catalog, &captureSink{}, clock)

	result, _ := r.ScanOnce(context.Background())
	id := result.NewAlerts[0].ID

	if !r.MarkRead(id) {
		t.Fatal("expected MarkRead to find the alert")
	}
	if !r.Alerts()[0].Read {
		t.Fatal("read flag not persisted")
	}
	if r.MarkRead(uuid.New()) {
		t.Fatal("unknown alert must not be marked")
	}
}

func TestStartStop_NoOrphanedScan(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	catalog := &fakeCatalog{opps: []models.Opportunity{
		testOpp("Grant", 1000, clock.Now().Add(time.Hour)),
	}}
	r := newTestRadar(catalog, &captureSink{}, clock)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("second start must fail while running")
	}

	r.Stop() // must return promptly, leaving no goroutine behind

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop failed: %v", err)
	}
	r.Stop()
}

func TestSeedSeen_SuppressesAlreadySavedOpportunities(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)}
	savedOpp := testOpp("Already saved", 3000, clock.Now().Add(72*time.Hour))
	freshOpp := testOpp("Brand new", 4000, clock.Now().Add(72*time.Hour))
	catalog := &fakeCatalog{opps: []models.Opportunity{savedOpp, freshOpp}}
	r := newTestRadar(catalog, &captureSink{}, clock)

	r.SeedSeen(models.NewSavedSet(savedOpp.ID))

	result, err := r.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.NewAlerts) != 1 || result.NewAlerts[0].Name != "Brand new" {
		t.Fatalf("seeded opportunity should be suppressed, got %+v", result.NewAlerts)
	}
}

func TestLoop_StopsSwappedTickerOnExit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)}
	catalog := &fakeCatalog{}
	r := newTestRadar(catalog, &captureSink{}, clock)
	r.UpdateSettings(models.AlertSettings{MaxAmount: 50000, ScanFrequency: models.ScanHourly})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for clock.tickerCount() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("loop never created its ticker")
		}
		time.Sleep(time.Millisecond)
	}

	// Switching frequency makes the loop swap its ticker after the next
	// scan completes.
	r.UpdateSettings(models.AlertSettings{MaxAmount: 50000, ScanFrequency: models.ScanRealtime})
	clock.ticker(0).tick(clock.Now())

	for clock.tickerCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("loop never created the replacement ticker")
		}
		time.Sleep(time.Millisecond)
	}

	r.Stop()

	if !clock.ticker(0).isStopped() {
		t.Fatal("original ticker was not stopped at the swap")
	}
	if !clock.ticker(1).isStopped() {
		t.Fatal("replacement ticker was not stopped on loop exit")
	}
}
