package models

// CategoryType represents the kind of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category names a class of transactions. A nil UserID marks a global category.
type Category struct {
	Base
	UserID      *string      `gorm:"type:uuid;index" json:"user_id"`
	Name        string       `gorm:"not null" json:"name"`
	Type        CategoryType `gorm:"not null" json:"type"`
	Description string       `json:"description"`
}
