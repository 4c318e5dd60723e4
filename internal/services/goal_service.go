package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/pagination"
)

// goalService handles financial goal business logic.
type goalService struct {
	db *gorm.DB
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB) GoalServicer {
	return &goalService{db: db}
}

// CreateGoal creates a savings goal.
func (s *goalService) CreateGoal(userID, name string, targetAmount, currentAmount float64, deadline *time.Time, category string) (*models.FinancialGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name is required")
	}
	if targetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be greater than zero")
	}
	if currentAmount < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "current amount must not be negative")
	}

	goal := &models.FinancialGoal{
		UserID:        userID,
		Name:          name,
		TargetAmount:  money.Round2(targetAmount),
		CurrentAmount: money.Round2(currentAmount),
		Deadline:      deadline,
		Category:      strings.TrimSpace(category),
	}

	if err := s.db.Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// GetUserGoals returns a paginated list of goals, nearest deadline first.
func (s *goalService) GetUserGoals(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialGoal], error) {
	base := s.db.Model(&models.FinancialGoal{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.FinancialGoal](base, page, "deadline IS NULL, deadline ASC, created_at ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetGoalByID returns a goal if it belongs to the user.
func (s *goalService) GetGoalByID(userID, goalID string) (*models.FinancialGoal, error) {
	var goal models.FinancialGoal
	if err := s.db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// UpdateGoal updates the supplied fields of a goal.
func (s *goalService) UpdateGoal(userID, goalID string, fields GoalUpdateFields) (*models.FinancialGoal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name := trimmed(fields.Name); name != "" {
		updates["name"] = name
	}
	if fields.TargetAmount != nil {
		if *fields.TargetAmount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be greater than zero")
		}
		updates["target_amount"] = money.Round2(*fields.TargetAmount)
	}
	if fields.CurrentAmount != nil {
		if *fields.CurrentAmount < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "current amount must not be negative")
		}
		updates["current_amount"] = money.Round2(*fields.CurrentAmount)
	}
	if fields.Deadline != nil {
		updates["deadline"] = *fields.Deadline
	}
	if fields.Category != nil {
		updates["category"] = trimmed(fields.Category)
	}

	if len(updates) > 0 {
		if err := s.db.Model(goal).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.GetGoalByID(userID, goalID)
	}
	return goal, nil
}

// DeleteGoal soft-deletes a goal.
func (s *goalService) DeleteGoal(userID, goalID string) error {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(goal).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
