package services

import (
	"context"

	"github.com/dtorrez/rentora-api/internal/models"
	"gorm.io/gorm"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Log records an audit entry. A service without a database handle drops entries.
func (s *AuditService) Log(ctx context.Context, userID uint, action, entity string, entityID uint, details, ip, userAgent string) error {
	if s == nil || s.db == nil {
		return nil
	}
	logEntry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	return s.db.WithContext(ctx).Create(logEntry).Error
}

// List retrieves an organization's audit logs, newest first, optionally
// filtered by entity. Entries carry no org column of their own; they are
// scoped through the acting user's organization.
func (s *AuditService) List(ctx context.Context, orgID uint, entity string, entityID uint, limit, offset int) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := s.db.WithContext(ctx).Model(&models.AuditLog{}).
		Joins("JOIN users ON users.id = audit_logs.user_id")
	if orgID > 0 {
		db = db.Where("users.org_id = ?", orgID)
	}
	if entity != "" {
		db = db.Where("audit_logs.entity = ?", entity)
	}
	if entityID > 0 {
		db = db.Where("audit_logs.entity_id = ?", entityID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := db.Select("audit_logs.*").
		Preload("User").
		Order("audit_logs.created_at desc").
		Limit(limit).Offset(offset).
		Find(&logs)
	return logs, total, result.Error
}
