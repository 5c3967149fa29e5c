package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
	"github.com/igianni84/erp-crurated-new-sub006/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormAuditSink writes audit entries to the audit_records table.
// Inside a transaction scope the row joins the caller's transaction behind a
// savepoint, so a failed insert is rolled back alone and the caller's work survives.
type GormAuditSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormAuditSink creates a new GormAuditSink
func NewGormAuditSink(db *gorm.DB, logger *zap.Logger) *GormAuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormAuditSink{db: db, logger: logger.Named("audit")}
}

// Record implements shared.AuditSink. Errors are logged, never returned.
func (s *GormAuditSink) Record(ctx context.Context, entry shared.AuditEntry) {
	row, err := models.AuditRecordModelFromDomain(entry)
	if err != nil {
		s.fail(entry, err)
		return
	}

	tx, inTx := TxFromContext(ctx)
	if !inTx {
		if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
			s.fail(entry, err)
		}
		return
	}

	savepoint := "audit_" + uuid.NewString()[:8]
	if err := tx.SavePoint(savepoint).Error; err != nil {
		s.fail(entry, err)
		return
	}
	if err := tx.Create(row).Error; err != nil {
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			s.logger.Error("Failed to roll back audit savepoint", zap.Error(rbErr))
		}
		s.fail(entry, err)
	}
}

// FindByEntity lists the audit trail of one entity, oldest first
func (s *GormAuditSink) FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]shared.AuditEntry, error) {
	var rows []models.AuditRecordModel
	if err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]shared.AuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *GormAuditSink) fail(entry shared.AuditEntry, err error) {
	s.logger.Error("Failed to write audit record",
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID.String()),
		zap.String("event", entry.Event),
		zap.Error(err),
	)
}

var _ shared.AuditSink = (*GormAuditSink)(nil)
