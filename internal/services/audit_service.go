package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions.
const (
	ActionImport     = "import_questions"
	ActionDuplicate  = "duplicate_tests"
	ActionDelete     = "delete"
	ActionExport     = "export_results"
	ActionDeactivate = "deactivate"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) Log(ctx context.Context, userID uuid.UUID, action, resourceType string, resourceID uuid.UUID, before, after datatypes.JSONMap, ip string) error {
	log := &models.AuditLog{
		ActorUserID:  userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       before,
		After:        after,
		IP:           ip,
	}
	return s.db.WithContext(ctx).Create(log).Error
}

// Recent returns the latest entries, newest first, optionally narrowed to a
// resource type.
func (s *AuditService) Recent(ctx context.Context, resourceType string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}

	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
