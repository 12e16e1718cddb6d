package radar

import (
	"context"

	"github.com/scholarseek/engine/internal/models"
	"go.uber.org/zap"
)

// CatalogProvider hands the radar a snapshot of the opportunity catalog.
// Fetches may fail transiently; the radar treats failure as "no results
// this tick" and retries on the next one.
type CatalogProvider interface {
	GetAll(ctx context.Context) ([]models.Opportunity, error)
}

// NotificationSink receives freshly created alerts. Delivery is
// fire-and-forget: a sink error is logged by the radar and never aborts
// the scan.
type NotificationSink interface {
	Deliver(ctx context.Context, alert models.Alert) error
}

// CatalogProviderFunc adapts a plain function to CatalogProvider.
type CatalogProviderFunc func(ctx context.Context) ([]models.Opportunity, error)

func (f CatalogProviderFunc) GetAll(ctx context.Context) ([]models.Opportunity, error) {
	return f(ctx)
}

// LogSink is a NotificationSink that just logs each alert. Useful as a
// default when no real delivery channel is wired.
type LogSink struct {
	Logger *zap.Logger
}

func (s *LogSink) Deliver(_ context.Context, alert models.Alert) error {
	s.Logger.Info("alert",
		zap.String("opportunity", alert.Name),
		zap.Int("match_percent", alert.MatchPercent),
		zap.String("urgency", string(alert.Urgency)),
	)
	return nil
}

// MultiSink fans an alert out to several sinks. Individual failures do
// not stop the fan-out; the first error is returned for logging.
type MultiSink []NotificationSink

func (m MultiSink) Deliver(ctx context.Context, alert models.Alert) error {
	var first error
	for _, sink := range m {
		if err := sink.Deliver(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
