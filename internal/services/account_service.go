package services

import (
	"errors"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db    *gorm.DB
	locks *keyedMutex
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db, locks: newKeyedMutex()}
}

// CreateAccount opens an account. The initial balance is the starting point
// that later transactions are applied against.
func (s *accountService) CreateAccount(userID string, input CreateAccountInput) (*models.Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	accountType := input.Type
	if accountType == "" {
		accountType = models.AccountTypeCash
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}

	account := &models.Account{
		UserID:     userID,
		Name:       name,
		Type:       accountType,
		Currency:   currency,
		Balance:    money.Round2(input.InitialBalance),
		BankName:   input.BankName,
		CardNumber: input.CardNumber,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetUserAccounts retrieves a paginated list of accounts for a user.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	base := s.db.Model(&models.Account{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.Account](base, page, "created_at ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccount updates descriptive fields of an account.
func (s *accountService) UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && strings.TrimSpace(*fields.Name) != "" {
		updates["name"] = strings.TrimSpace(*fields.Name)
	}
	if fields.Type != nil {
		updates["type"] = *fields.Type
	}
	if fields.Currency != nil && *fields.Currency != "" {
		updates["currency"] = strings.ToUpper(*fields.Currency)
	}
	if fields.BankName != nil {
		updates["bank_name"] = *fields.BankName
	}
	if fields.CardNumber != nil {
		updates["card_number"] = *fields.CardNumber
	}
	if fields.LastSync != nil {
		updates["last_sync"] = *fields.LastSync
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return account, nil
}

// DeleteAccount soft-deletes an account. Its transactions are left in place.
func (s *accountService) DeleteAccount(userID, accountID string) error {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(account).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// WithAccountLock serializes balance changes for one account within this process.
func (s *accountService) WithAccountLock(accountID string, fn func() error) error {
	unlock := s.locks.lock(accountID)
	defer unlock()
	return fn()
}

// ApplyBalanceDelta reads the account inside tx, adds delta and writes the
// rounded result back. Callers hold WithAccountLock for the same account.
func (s *accountService) ApplyBalanceDelta(tx *gorm.DB, accountID string, delta float64) (*models.Account, error) {
	var account models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	account.Balance = money.Add(account.Balance, delta)
	if err := tx.Model(&account).Update("balance", account.Balance).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
