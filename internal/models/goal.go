package models

import "time"

// FinancialGoal tracks saving toward a target amount.
type FinancialGoal struct {
	Base
	UserID        string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string     `gorm:"not null" json:"name"`
	TargetAmount  float64    `gorm:"type:numeric(14,2);not null" json:"target_amount"`
	CurrentAmount float64    `gorm:"type:numeric(14,2);not null;default:0" json:"current_amount"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Category      string     `json:"category,omitempty"`
}
