package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"fintrack/internal/logger"
	"fintrack/internal/models"
)

// Audit actions recorded for transaction writes and sign-ins.
const (
	AuditActionCreateTransaction = "CREATE_TRANSACTION"
	AuditActionUpdateTransaction = "UPDATE_TRANSACTION"
	AuditActionDeleteTransaction = "DELETE_TRANSACTION"
	AuditActionRegister          = "REGISTER"
	AuditActionLogin             = "LOGIN"
	AuditActionSyncCategories    = "SYNC_CATEGORIES"
	AuditResourceTransaction     = "transaction"
)

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}
	// Bulk actions such as a category sync have no single resource.
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
