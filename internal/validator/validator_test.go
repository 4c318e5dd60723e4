package validator

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

type enumRequest struct {
	TransactionType string `binding:"omitempty,transaction_type"`
	CategoryType    string `binding:"omitempty,category_type"`
	AccountType     string `binding:"omitempty,account_type"`
	BudgetStatus    string `binding:"omitempty,budget_status"`
	Currency        string `binding:"omitempty,iso4217"`
}

func TestRegister(t *testing.T) {
	Register()

	valid := []enumRequest{
		{TransactionType: "income"},
		{TransactionType: "expense"},
		{CategoryType: "expense"},
		{AccountType: "card"},
		{AccountType: "wallet"},
		{BudgetStatus: "overspent"},
		{Currency: "UAH"},
		{},
	}
	for _, req := range valid {
		if err := binding.Validator.ValidateStruct(req); err != nil {
			t.Errorf("%+v: unexpected error %v", req, err)
		}
	}

	invalid := []enumRequest{
		{TransactionType: "transfer"},
		{CategoryType: "savings"},
		{AccountType: "investment"},
		{BudgetStatus: "paused"},
		{Currency: "XXY"},
	}
	for _, req := range invalid {
		if err := binding.Validator.ValidateStruct(req); err == nil {
			t.Errorf("%+v: expected validation error", req)
		}
	}
}
