package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"fintrack/internal/categorymap"
	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/mlclient"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/pagination"
)

// DefaultPredictBatchConcurrency bounds concurrent ML calls in PredictBatch.
const DefaultPredictBatchConcurrency = 4

// TransactionServiceDeps wires the collaborators of the transaction service.
// Categorizer, Corrections and Audit may be nil.
type TransactionServiceDeps struct {
	Accounts         AccountServicer
	Categories       CategoryServicer
	Budgets          BudgetServicer
	Categorizer      Categorizer
	Corrections      CorrectionSubmitter
	Audit            AuditServicer
	BatchConcurrency int
}

// transactionService handles transaction-related business logic.
type transactionService struct {
	db               *gorm.DB
	accounts         AccountServicer
	categories       CategoryServicer
	budgets          BudgetServicer
	categorizer      Categorizer
	corrections      CorrectionSubmitter
	audit            AuditServicer
	batchConcurrency int
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, deps TransactionServiceDeps) TransactionServicer {
	if deps.BatchConcurrency <= 0 {
		deps.BatchConcurrency = DefaultPredictBatchConcurrency
	}
	return &transactionService{
		db:               db,
		accounts:         deps.Accounts,
		categories:       deps.Categories,
		budgets:          deps.Budgets,
		categorizer:      deps.Categorizer,
		corrections:      deps.Corrections,
		audit:            deps.Audit,
		batchConcurrency: deps.BatchConcurrency,
	}
}

// CreateTransaction records a transaction and moves the account balance by
// its rounded amount in the same database transaction. The category comes
// from the client, else from the ML service; a transaction without a
// resolvable category is rejected. Category and budget provisioning and the
// ML correction run afterwards and never fail the call.
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, input CreateTransactionInput) (*models.Transaction, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	}
	if input.Amount == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount is required")
	}
	if input.Date.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "date is required")
	}
	if input.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account is required")
	}

	account, err := s.accounts.GetAccountByID(userID, input.AccountID)
	if err != nil {
		return nil, err
	}

	amount := money.Round2(*input.Amount)
	txType := models.TypeForAmount(amount)

	category := s.resolveCategory(ctx, userID, description, input.Category)
	if category == "" {
		return nil, apperrors.ErrCategoryRequired
	}

	transaction := &models.Transaction{
		UserID:      userID,
		AccountID:   account.ID,
		Description: description,
		Amount:      amount,
		Type:        txType,
		Date:        input.Date.UTC(),
		Category:    category,
		MCC:         input.MCC,
	}

	err = s.accounts.WithAccountLock(account.ID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(transaction).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			updated, err := s.accounts.ApplyBalanceDelta(tx, account.ID, amount)
			if err != nil {
				return err
			}
			transaction.Account = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.provision(userID, category, categoryTypeFor(txType))

	if original := categorymap.Normalize(input.OriginalPredictedCategory); original != "" && original != category {
		s.submitCorrection(userID, description, original, category)
	}

	s.logAudit(userID, AuditActionCreateTransaction, transaction.ID, input.IPAddress, map[string]any{
		"account_id": transaction.AccountID,
		"amount":     transaction.Amount,
		"category":   transaction.Category,
	})

	return transaction, nil
}

// UpdateTransaction applies the supplied fields and moves the account balance
// by exactly new-old amount. A category change is reported to the ML service.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error) {
	existing, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}

	if fields.Description != nil && trimmed(fields.Description) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description must not be empty")
	}
	var newCategory string
	if fields.Category != nil {
		newCategory = categorymap.Normalize(*fields.Category)
		if newCategory == "" {
			return nil, apperrors.ErrCategoryRequired
		}
	}

	var prior models.Transaction
	var newAmount float64
	err = s.accounts.WithAccountLock(existing.AccountID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			// Re-read under the lock so the delta is computed against the
			// committed amount.
			if err := tx.Where("id = ? AND user_id = ?", transactionID, userID).First(&prior).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.ErrTransactionNotFound
				}
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			oldAmount := prior.Amount
			newAmount = oldAmount
			if fields.Amount != nil {
				newAmount = money.Round2(*fields.Amount)
			}
			newType := models.TypeForAmount(newAmount)
			if fields.Type != nil && *fields.Type != newType {
				return apperrors.ErrInvalidTransactionType
			}

			updates := map[string]interface{}{
				"amount": newAmount,
				"type":   newType,
			}
			if fields.Description != nil {
				updates["description"] = trimmed(fields.Description)
			}
			if fields.Date != nil {
				updates["date"] = fields.Date.UTC()
			}
			if fields.Category != nil {
				updates["category"] = newCategory
			}

			if err := tx.Model(&prior).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			delta := money.Sub(newAmount, oldAmount)
			if delta == 0 {
				return nil
			}
			if _, err := s.accounts.ApplyBalanceDelta(tx, prior.AccountID, delta); err != nil {
				if errors.Is(err, apperrors.ErrAccountNotFound) {
					logger.Get().Warnw("Account missing, balance not adjusted",
						"transaction_id", transactionID, "account_id", prior.AccountID)
					return nil
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	oldCategory := categorymap.Normalize(existing.Category)
	if fields.Category != nil && oldCategory != "" && newCategory != oldCategory {
		description := existing.Description
		if fields.Description != nil {
			description = trimmed(fields.Description)
		}
		s.submitCorrection(userID, description, oldCategory, newCategory)
		s.provision(userID, newCategory, categoryTypeFor(models.TypeForAmount(newAmount)))
	}

	s.logAudit(userID, AuditActionUpdateTransaction, transactionID, fields.IPAddress, map[string]any{
		"old_amount":   existing.Amount,
		"new_amount":   newAmount,
		"old_category": existing.Category,
		"new_category": newCategory,
	})

	return s.GetTransactionByID(userID, transactionID)
}

// DeleteTransaction soft-deletes a transaction and subtracts its amount from
// the account balance in the same database transaction.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	existing, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	err = s.accounts.WithAccountLock(existing.AccountID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var current models.Transaction
			if err := tx.Where("id = ? AND user_id = ?", transactionID, userID).First(&current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.ErrTransactionNotFound
				}
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			if err := tx.Delete(&current).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			if _, err := s.accounts.ApplyBalanceDelta(tx, current.AccountID, -current.Amount); err != nil {
				if errors.Is(err, apperrors.ErrAccountNotFound) {
					logger.Get().Warnw("Account missing, balance not reversed",
						"transaction_id", transactionID, "account_id", current.AccountID)
					return nil
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.logAudit(userID, AuditActionDeleteTransaction, transactionID, "", map[string]any{
		"amount":   existing.Amount,
		"category": existing.Category,
	})
	return nil
}

// GetTransactionByID retrieves a transaction with its account for a specific user.
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Account").
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	base := applyTransactionFilters(s.db.Model(&models.Transaction{}).Where("user_id = ?", userID), filter)
	result, err := pagination.Find[models.Transaction](base, page, "date DESC, created_at DESC", preloadAccount)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if _, err := s.accounts.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}
	filter.AccountID = &accountID
	return s.GetUserTransactions(userID, page, filter)
}

// PredictCategory asks the ML service for a category without saving anything.
// Unlike CreateTransaction, an ML failure is reported as UPSTREAM_ERROR.
func (s *transactionService) PredictCategory(ctx context.Context, userID, description string) (*CategoryPrediction, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	}
	if s.categorizer == nil {
		return nil, apperrors.ErrUpstream
	}

	prediction, err := s.categorizer.Categorize(ctx, userID, description)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUpstream, err)
	}

	result := &CategoryPrediction{Description: description, Raw: prediction}
	if name := categorymap.Normalize(prediction.CategoryName()); name != "" {
		result.Category = &name
	}
	return result, nil
}

// PredictBatch predicts each description with bounded concurrency. Results
// keep input order; a failed item gets a nil category and an error message.
func (s *transactionService) PredictBatch(ctx context.Context, userID string, descriptions []string) ([]CategoryPrediction, error) {
	results := make([]CategoryPrediction, len(descriptions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, description := range descriptions {
		i, description := i, description
		g.Go(func() error {
			p, err := s.PredictCategory(gctx, userID, description)
			if err != nil {
				results[i] = CategoryPrediction{Description: description, Error: err.Error()}
				return nil
			}
			results[i] = *p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return results, nil
}

// resolveCategory picks the client's category verbatim when given, otherwise
// the ML prediction with class ids translated. The result is normalized.
// An ML failure yields "".
func (s *transactionService) resolveCategory(ctx context.Context, userID, description, clientCategory string) string {
	if c := strings.TrimSpace(clientCategory); c != "" {
		return categorymap.Normalize(c)
	}
	if s.categorizer == nil {
		return ""
	}

	prediction, err := s.categorizer.Categorize(ctx, userID, description)
	if err != nil {
		logger.Get().Warnw("ML categorization unavailable, continuing without prediction",
			"user_id", userID, "error", err)
		return ""
	}
	return categorymap.Normalize(prediction.CategoryName())
}

// provision makes sure a category and a budget exist for name. Failures are
// logged only.
func (s *transactionService) provision(userID, name string, kind models.CategoryType) {
	log := logger.Get()
	if s.categories != nil {
		if _, _, err := s.categories.EnsureCategory(userID, name, kind); err != nil {
			log.Warnw("Category auto-provisioning failed", "user_id", userID, "category", name, "error", err)
		}
	}
	if s.budgets != nil {
		if _, err := s.budgets.EnsureBudgetForCategory(userID, name); err != nil {
			log.Warnw("Budget auto-provisioning failed", "user_id", userID, "category", name, "error", err)
		}
	}
}

func (s *transactionService) submitCorrection(userID, description, original, corrected string) {
	if s.corrections == nil {
		return
	}
	s.corrections.Submit(mlclient.Correction{
		UserID:                userID,
		Description:           description,
		OriginalCategoryID:    categorymap.CorrectionID(original),
		CorrectedCategoryID:   categorymap.CorrectionID(corrected),
		OriginalCategoryName:  original,
		CorrectedCategoryName: corrected,
	})
}

func (s *transactionService) logAudit(userID, action, resourceID, ip string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Log(userID, action, AuditResourceTransaction, resourceID, ip, changes)
}

func preloadAccount(db *gorm.DB) *gorm.DB {
	return db.Preload("Account")
}

func categoryTypeFor(t models.TransactionType) models.CategoryType {
	if t == models.TransactionTypeIncome {
		return models.CategoryTypeIncome
	}
	return models.CategoryTypeExpense
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("category = ?", categorymap.Normalize(*f.Category))
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	return q
}
