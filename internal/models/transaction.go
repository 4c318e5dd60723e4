package models

import "time"

// TransactionType mirrors the sign of the amount
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TypeForAmount derives the transaction type from a signed amount.
func TypeForAmount(amount float64) TransactionType {
	if amount < 0 {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

// Transaction is a signed movement of money on one account. Amount is
// positive for income and negative for expenses; Type always agrees with it.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Description string          `gorm:"not null" json:"description"`
	Amount      float64         `gorm:"type:numeric(14,2);not null" json:"amount"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	Category    string          `gorm:"not null;index" json:"category"`
	MCC         *int            `json:"mcc,omitempty"`

	// Relationships
	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}
