package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/mlclient"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// CreateAccountInput holds the fields accepted when opening an account.
type CreateAccountInput struct {
	Name           string
	Type           models.AccountType
	Currency       string
	InitialBalance float64
	BankName       string
	CardNumber     string
}

// AccountUpdateFields holds optional fields for updating an account.
// Balance is not updatable; it only moves with transactions.
type AccountUpdateFields struct {
	Name       *string
	Type       *models.AccountType
	Currency   *string
	BankName   *string
	CardNumber *string
	LastSync   *time.Time
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(userID string, input CreateAccountInput) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error)
	DeleteAccount(userID, accountID string) error
	// WithAccountLock runs fn while holding the in-process lock for accountID.
	WithAccountLock(accountID string, fn func() error) error
	// ApplyBalanceDelta adds delta to the account balance inside tx.
	ApplyBalanceDelta(tx *gorm.DB, accountID string, delta float64) (*models.Account, error)
}

// CategoryUpdateFields holds optional fields for updating a category.
type CategoryUpdateFields struct {
	Name        *string
	Type        *models.CategoryType
	Description *string
}

// CategorySyncResult lists what a sync changed.
type CategorySyncResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, fields CategoryUpdateFields) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	// EnsureCategory finds or creates the user's category by normalized
	// name. The bool reports whether a row was created.
	EnsureCategory(userID, name string, categoryType models.CategoryType) (*models.Category, bool, error)
	SyncFromTransactions(userID string) (*CategorySyncResult, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	Type      *models.TransactionType
	Category  *string
	MinAmount *float64
	MaxAmount *float64
	AccountID *string
}

// CreateTransactionInput holds the fields for a new transaction. Category is
// optional; without it the ML service is asked for one.
// OriginalPredictedCategory is the suggestion the client showed the user
// before they chose Category; a mismatch is reported as a correction.
type CreateTransactionInput struct {
	AccountID                 string
	Description               string
	Amount                    *float64
	Date                      time.Time
	Category                  string
	OriginalPredictedCategory string
	MCC                       *int
	IPAddress                 string
}

// TransactionUpdateFields holds optional fields for updating a transaction.
type TransactionUpdateFields struct {
	Description *string
	Amount      *float64
	Date        *time.Time
	Category    *string
	Type        *models.TransactionType
	IPAddress   string
}

// CategoryPrediction is a read-only suggestion for one description.
type CategoryPrediction struct {
	Description string              `json:"description"`
	Category    *string             `json:"category"`
	Raw         mlclient.Prediction `json:"raw" swaggertype:"object"`
	Error       string              `json:"error,omitempty"`
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, input CreateTransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	PredictCategory(ctx context.Context, userID, description string) (*CategoryPrediction, error)
	PredictBatch(ctx context.Context, userID string, descriptions []string) ([]CategoryPrediction, error)
}

// EstimateOptions tunes EstimateDefaultBudget. Zero or negative fields take
// the defaults, so Minimum is always a positive floor. Any positive Minimum,
// including one below DefaultEstimateMinimum, is honored.
type EstimateOptions struct {
	Months     int
	Multiplier float64
	Minimum    float64
}

// BudgetEstimator suggests a monthly limit from spending history.
type BudgetEstimator interface {
	// EstimateDefaultBudget never fails; errors degrade to opts.Minimum.
	EstimateDefaultBudget(userID, categoryName string, opts EstimateOptions) float64
}

// BudgetUpdateFields holds optional fields for updating a budget.
type BudgetUpdateFields struct {
	Name      *string
	Category  *string
	Limit     *float64
	StartDate *time.Time
	EndDate   *time.Time
	AccountID *string
	Status    *models.BudgetStatus
}

// CreateBudgetInput holds the fields for an explicitly created budget.
type CreateBudgetInput struct {
	Name      string
	Category  string
	Limit     float64
	StartDate time.Time
	EndDate   time.Time
	AccountID *string
	Status    models.BudgetStatus
}

// BudgetProgress contains spending vs budget data for a budget's date range.
type BudgetProgress struct {
	BudgetID   string  `json:"budget_id"`
	Budgeted   float64 `json:"budgeted"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// BudgetReconcileResult reports what EnsureBudgetForCategory did.
type BudgetReconcileResult struct {
	Created     bool           `json:"created"`
	Updated     bool           `json:"updated"`
	LimitRaised bool           `json:"limit_raised"`
	NameFixed   bool           `json:"name_fixed"`
	Budget      *models.Budget `json:"budget"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID string, input CreateBudgetInput) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, status *models.BudgetStatus, category *string) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, fields BudgetUpdateFields) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error)
	// EnsureBudgetForCategory finds the user's first budget for the category
	// and heals it, or creates one for the current month.
	EnsureBudgetForCategory(userID, categoryName string) (*BudgetReconcileResult, error)
}

// GoalUpdateFields holds optional fields for updating a financial goal.
type GoalUpdateFields struct {
	Name          *string
	TargetAmount  *float64
	CurrentAmount *float64
	Deadline      *time.Time
	Category      *string
}

// GoalServicer defines the contract for financial goal business logic.
type GoalServicer interface {
	CreateGoal(userID, name string, targetAmount, currentAmount float64, deadline *time.Time, category string) (*models.FinancialGoal, error)
	GetUserGoals(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialGoal], error)
	GetGoalByID(userID, goalID string) (*models.FinancialGoal, error)
	UpdateGoal(userID, goalID string, fields GoalUpdateFields) (*models.FinancialGoal, error)
	DeleteGoal(userID, goalID string) error
}

// Categorizer asks the ML service for a category.
type Categorizer interface {
	Categorize(ctx context.Context, userID, description string) (mlclient.Prediction, error)
}

// CorrectionSubmitter queues a correction for one-way delivery.
type CorrectionSubmitter interface {
	Submit(c mlclient.Correction) bool
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
