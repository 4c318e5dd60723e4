// Package validator registers the domain enum checks with Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"fintrack/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
// Currency codes use the engine's built-in iso4217 tag.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("transaction_type", oneOf(models.TransactionTypeIncome, models.TransactionTypeExpense))
		_ = v.RegisterValidation("category_type", oneOf(models.CategoryTypeIncome, models.CategoryTypeExpense))
		_ = v.RegisterValidation("account_type", oneOf(
			models.AccountTypeCash,
			models.AccountTypeBank,
			models.AccountTypeCard,
			models.AccountTypeWallet,
			models.AccountTypeOther,
		))
		_ = v.RegisterValidation("budget_status", oneOf(
			models.BudgetStatusActive,
			models.BudgetStatusCompleted,
			models.BudgetStatusOverspent,
		))
	}
}

// oneOf builds a validation func accepting exactly the given string enum values.
func oneOf[T ~string](allowed ...T) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[string(a)] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}
