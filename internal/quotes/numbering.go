package quotes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

// numberPrefix maps a document type to its human-readable prefix.
func numberPrefix(dt models.DocumentType) string {
	if dt == models.DocFacture {
		return "FAC"
	}
	return "DEV"
}

// allocateNumber reserves the next sequential document number for the
// user, e.g. "DEV-2025-0007". Sequences are per user, per document type,
// per year. The upsert increments the counter row and holds its lock
// until the surrounding transaction commits, so two concurrent creates
// cannot allocate the same number; must be called inside a transaction.
func allocateNumber(tx *gorm.DB, userID uuid.UUID, dt models.DocumentType, at time.Time) (string, error) {
	year := at.Year()

	ctr := models.QuoteCounter{UserID: userID, DocumentType: dt, Year: year, LastSeq: 1}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "document_type"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seq": gorm.Expr("quote_counters.last_seq + 1"),
		}),
	}).Create(&ctr).Error; err != nil {
		return "", err
	}

	// Read back the allocated value; the row is locked by the upsert
	// above for the rest of the transaction.
	if err := tx.Where("user_id = ? AND document_type = ? AND year = ?", userID, dt, year).
		First(&ctr).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d-%04d", numberPrefix(dt), year, ctr.LastSeq), nil
}
