package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/scholarseek/engine/internal/models"
)

// AlertSink persists radar alerts for one user so they survive restarts.
// It satisfies the radar's NotificationSink interface.
type AlertSink struct {
	store  *Store
	userID uuid.UUID
}

func NewAlertSink(store *Store, userID uuid.UUID) *AlertSink {
	return &AlertSink{store: store, userID: userID}
}

func (s *AlertSink) Deliver(ctx context.Context, alert models.Alert) error {
	return s.store.InsertAlert(ctx, s.userID, alert)
}
