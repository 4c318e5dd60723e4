package services

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/categorymap"
	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/pagination"
)

// legacyDefaultMarker matches the "(default)" suffix older auto-created budgets carry.
var legacyDefaultMarker = regexp.MustCompile(`(?i)\(default\)`)

// budgetService handles budget-related business logic.
type budgetService struct {
	db        *gorm.DB
	estimator BudgetEstimator
	now       func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, estimator BudgetEstimator) BudgetServicer {
	return NewBudgetServiceWithClock(db, estimator, time.Now)
}

// NewBudgetServiceWithClock creates a BudgetServicer that reads the current time from now.
func NewBudgetServiceWithClock(db *gorm.DB, estimator BudgetEstimator, now func() time.Time) BudgetServicer {
	return &budgetService{db: db, estimator: estimator, now: now}
}

// CreateBudget creates a budget explicitly.
func (s *budgetService) CreateBudget(userID string, input CreateBudgetInput) (*models.Budget, error) {
	category := categorymap.Normalize(input.Category)
	if category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget category is required")
	}
	if input.Limit < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget limit must not be negative")
	}
	if !input.EndDate.IsZero() && input.EndDate.Before(input.StartDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = category
	}
	status := input.Status
	if status == "" {
		status = models.BudgetStatusActive
	}

	start, end := input.StartDate, input.EndDate
	if start.IsZero() {
		start, end = monthBounds(s.now())
	} else if end.IsZero() {
		_, end = monthBounds(start)
	}

	budget := &models.Budget{
		UserID:    userID,
		Name:      name,
		Category:  category,
		Limit:     money.Round2(input.Limit),
		StartDate: start,
		EndDate:   end,
		AccountID: input.AccountID,
		Status:    status,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with optional filters.
func (s *budgetService) GetUserBudgets(
	userID string,
	page pagination.PageRequest,
	status *models.BudgetStatus,
	category *string,
) (*pagination.PageResponse[models.Budget], error) {
	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if status != nil {
		base = base.Where("status = ?", *status)
	}
	if category != nil {
		base = base.Where("category = ?", categorymap.Normalize(*category))
	}

	result, err := pagination.Find[models.Budget](base, page, "created_at ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates an existing budget's fields. Status is only ever
// changed here, by the caller.
func (s *budgetService) UpdateBudget(userID, budgetID string, fields BudgetUpdateFields) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && strings.TrimSpace(*fields.Name) != "" {
		updates["name"] = strings.TrimSpace(*fields.Name)
	}
	if fields.Category != nil && strings.TrimSpace(*fields.Category) != "" {
		updates["category"] = categorymap.Normalize(*fields.Category)
	}
	if fields.Limit != nil {
		if *fields.Limit < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget limit must not be negative")
		}
		updates["limit_amount"] = money.Round2(*fields.Limit)
	}
	if fields.StartDate != nil {
		updates["start_date"] = *fields.StartDate
	}
	if fields.EndDate != nil {
		updates["end_date"] = *fields.EndDate
	}
	if fields.AccountID != nil {
		updates["account_id"] = fields.AccountID
	}
	if fields.Status != nil {
		updates["status"] = *fields.Status
	}

	start, end := budget.StartDate, budget.EndDate
	if fields.StartDate != nil {
		start = *fields.StartDate
	}
	if fields.EndDate != nil {
		end = *fields.EndDate
	}
	if end.Before(start) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.GetBudgetByID(userID, budgetID)
	}

	return budget, nil
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBudgetProgress sums the user's expenses in the budget's category over
// the budget's date range.
func (s *budgetService) GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	end := time.Date(budget.EndDate.Year(), budget.EndDate.Month(), budget.EndDate.Day(), 23, 59, 59, 999999999, budget.EndDate.Location())

	var amounts []float64
	err = s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND category = ? AND amount < 0 AND date >= ? AND date <= ?",
			userID, budget.Category, budget.StartDate, end).
		Pluck("amount", &amounts).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var spent float64
	for _, a := range amounts {
		spent = money.Sub(spent, a)
	}

	var percentage float64
	if budget.Limit > 0 {
		percentage = money.Round2(spent / budget.Limit * 100)
	}

	return &BudgetProgress{
		BudgetID:   budget.ID,
		Budgeted:   budget.Limit,
		Spent:      spent,
		Remaining:  money.Sub(budget.Limit, spent),
		Percentage: percentage,
	}, nil
}

// EnsureBudgetForCategory creates a current-month budget with the estimated
// limit when the user has none for the category. An existing budget (the
// first created wins when there are several) gets a positive limit below the
// estimate raised and a legacy "(default)" name replaced by the category name.
// The limit is never lowered.
func (s *budgetService) EnsureBudgetForCategory(userID, categoryName string) (*BudgetReconcileResult, error) {
	categoryName = categorymap.Normalize(categoryName)
	if userID == "" || categoryName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user and category are required")
	}

	estimate := s.estimator.EstimateDefaultBudget(userID, categoryName, EstimateOptions{})

	var existing models.Budget
	err := s.db.Where("user_id = ? AND category = ?", userID, categoryName).
		Order("created_at ASC, id ASC").
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		start, end := monthBounds(s.now())
		budget := &models.Budget{
			UserID:    userID,
			Name:      categoryName,
			Category:  categoryName,
			Limit:     estimate,
			StartDate: start,
			EndDate:   end,
			Status:    models.BudgetStatusActive,
		}
		if err := s.db.Create(budget).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		logger.Get().Infow("Budget auto-created",
			"user_id", userID, "category", categoryName, "limit", estimate)
		return &BudgetReconcileResult{Created: true, Budget: budget}, nil
	}

	result := &BudgetReconcileResult{Budget: &existing}
	updates := make(map[string]interface{})

	if existing.Limit > 0 && existing.Limit < estimate {
		updates["limit_amount"] = estimate
		result.LimitRaised = true
	}
	if legacyDefaultMarker.MatchString(existing.Name) {
		updates["name"] = categoryName
		result.NameFixed = true
	}

	if len(updates) == 0 {
		return result, nil
	}

	if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if result.LimitRaised {
		existing.Limit = estimate
	}
	if result.NameFixed {
		existing.Name = categoryName
	}
	result.Updated = true

	logger.Get().Infow("Budget healed",
		"user_id", userID,
		"category", categoryName,
		"limit_raised", result.LimitRaised,
		"name_fixed", result.NameFixed,
	)
	return result, nil
}

// monthBounds returns the first and last day of t's calendar month in UTC.
func monthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}
