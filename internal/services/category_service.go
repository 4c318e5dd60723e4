package services

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"fintrack/internal/categorymap"
	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db      *gorm.DB
	budgets BudgetServicer
}

// NewCategoryService creates a new CategoryServicer. Sync cascades new
// categories into budgets.
func NewCategoryService(db *gorm.DB, budgets BudgetServicer) CategoryServicer {
	return &categoryService{db: db, budgets: budgets}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(
	userID string,
	name string,
	categoryType models.CategoryType,
	description string,
) (*models.Category, error) {
	name = categorymap.Normalize(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if categoryType == "" {
		categoryType = models.CategoryTypeExpense
	}

	// Check if a category with the same name already exists for this user
	var count int64
	if err := s.db.Model(&models.Category{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if count > 0 {
		return nil, apperrors.ErrDuplicateCategory
	}

	owner := userID
	category := &models.Category{
		UserID:      &owner,
		Name:        name,
		Type:        categoryType,
		Description: description,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves the user's categories plus global ones,
// optionally filtered by type.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error) {
	base := s.db.Model(&models.Category{}).Where("user_id = ? OR user_id IS NULL", userID)
	if categoryType != nil {
		base = base.Where("type = ?", *categoryType)
	}

	result, err := pagination.Find[models.Category](base, page, "name ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory updates an existing category
func (s *categoryService) UpdateCategory(userID, categoryID string, fields CategoryUpdateFields) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := categorymap.Normalize(*fields.Name)
		if name != "" && name != category.Name {
			var count int64
			if err := s.db.Model(&models.Category{}).
				Where("user_id = ? AND name = ? AND id <> ?", userID, name, categoryID).
				Count(&count).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count > 0 {
				return nil, apperrors.ErrDuplicateCategory
			}
			updates["name"] = name
		}
	}
	if fields.Type != nil {
		updates["type"] = *fields.Type
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.GetCategoryByID(userID, categoryID)
	}

	return category, nil
}

// DeleteCategory soft-deletes a category. Transactions keep their category
// name and budgets are left alone.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// EnsureCategory finds the user's category by normalized name or creates it.
// Concurrent first calls for the same name can both insert; the duplicate is
// tolerated and later lookups take the oldest row.
func (s *categoryService) EnsureCategory(userID, name string, categoryType models.CategoryType) (*models.Category, bool, error) {
	name = categorymap.Normalize(name)
	if userID == "" || name == "" {
		return nil, false, apperrors.WithMessage(apperrors.ErrInvalidInput, "user and category name are required")
	}
	if categoryType == "" {
		categoryType = models.CategoryTypeExpense
	}

	var existing models.Category
	err := s.db.Where("user_id = ? AND name = ?", userID, name).
		Order("created_at ASC").
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	owner := userID
	category := &models.Category{
		UserID: &owner,
		Name:   name,
		Type:   categoryType,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("Category auto-created", "user_id", userID, "category", name, "type", categoryType)
	return category, true, nil
}

// SyncFromTransactions creates an expense category for every category name
// in the user's transactions that has none, and reconciles the budget of
// each one it creates. Budget failures are logged and skipped.
func (s *categoryService) SyncFromTransactions(userID string) (*CategorySyncResult, error) {
	result := &CategorySyncResult{Created: []string{}, Updated: []string{}}

	var raw []string
	if err := s.db.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("category", &raw).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	seen := make(map[string]struct{}, len(raw))
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		name := categorymap.Normalize(r)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	log := logger.Get()
	if len(names) == 0 {
		log.Infow("No categories found in transactions", "user_id", userID)
		return result, nil
	}

	for _, name := range names {
		_, created, err := s.EnsureCategory(userID, name, models.CategoryTypeExpense)
		if err != nil {
			return nil, err
		}
		if !created {
			continue
		}
		result.Created = append(result.Created, name)

		if s.budgets == nil {
			continue
		}
		reconciled, err := s.budgets.EnsureBudgetForCategory(userID, name)
		if err != nil {
			log.Warnw("Budget reconcile failed during category sync",
				"user_id", userID, "category", name, "error", err)
			continue
		}
		if reconciled.Updated {
			result.Updated = append(result.Updated, name)
		}
	}

	log.Infow("Category sync completed",
		"user_id", userID,
		"created", len(result.Created),
		"updated", len(result.Updated),
	)
	return result, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
