package models

import "time"

// BudgetStatus is stored and settable; nothing transitions it automatically.
type BudgetStatus string

const (
	BudgetStatusActive    BudgetStatus = "active"
	BudgetStatusCompleted BudgetStatus = "completed"
	BudgetStatusOverspent BudgetStatus = "overspent"
)

// Budget caps spending for a category over a date range. Category holds the
// category name, not a foreign key.
type Budget struct {
	Base
	UserID    string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name      string       `gorm:"not null" json:"name"`
	Category  string       `gorm:"not null;index" json:"category"`
	Limit     float64      `gorm:"column:limit_amount;type:numeric(14,2);not null" json:"limit"`
	StartDate time.Time    `gorm:"not null" json:"start_date"`
	EndDate   time.Time    `gorm:"not null" json:"end_date"`
	AccountID *string      `gorm:"type:uuid" json:"account_id,omitempty"`
	Status    BudgetStatus `gorm:"not null;default:'active'" json:"status"`
}
