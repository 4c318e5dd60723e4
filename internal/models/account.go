package models

import "time"

// AccountType represents the kind of account
type AccountType string

const (
	AccountTypeCash   AccountType = "cash"
	AccountTypeBank   AccountType = "bank"
	AccountTypeCard   AccountType = "card"
	AccountTypeWallet AccountType = "wallet"
	AccountTypeOther  AccountType = "other"
)

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "UAH"

// Account is a money container owned by one user. Balance is the initial
// balance plus the signed amount of every live transaction against it.
type Account struct {
	Base
	UserID     string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name       string      `gorm:"not null" json:"name"`
	Type       AccountType `gorm:"not null" json:"type"`
	Currency   string      `gorm:"not null;default:'UAH'" json:"currency"`
	Balance    float64     `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	BankName   string      `json:"bank_name,omitempty"`
	CardNumber string      `json:"card_number,omitempty"`
	LastSync   *time.Time  `json:"last_sync,omitempty"`
}
