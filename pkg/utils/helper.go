package utils

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

// LogQuoteHistory inserts an audit record into quote_histories.
// Used to track status transitions and payment events on a quote.
// Errors are ignored on purpose (best-effort logging).
func LogQuoteHistory(
	ctx context.Context,
	db *gorm.DB,
	quoteID, actorID uuid.UUID,
	action string,
	oldS, newS models.QuoteStatus,
) {
	_ = db.WithContext(ctx).Create(&models.QuoteHistory{
		QuoteID:   quoteID,
		ActorID:   actorID,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
	}).Error
}
