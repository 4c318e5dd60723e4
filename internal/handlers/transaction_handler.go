package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
	"fintrack/internal/uuid"
)

// maxPredictBatch caps the number of descriptions in one batch prediction.
const maxPredictBatch = 100

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// A negative amount is an expense. Without a category the ML service is asked.
type CreateTransactionRequest struct {
	AccountID                 string   `json:"account_id" binding:"required,uuid"`
	Description               string   `json:"description" binding:"required,max=500"`
	Amount                    *float64 `json:"amount" binding:"required"`
	Date                      string   `json:"date" binding:"required"`
	Category                  string   `json:"category" binding:"max=100"`
	OriginalPredictedCategory string   `json:"original_predicted_category" binding:"max=100"`
	MCC                       *int     `json:"mcc" binding:"omitempty,min=0,max=9999"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Record a transaction and move the account balance. The category is taken from the request or predicted by the ML service; a category the user picked over a shown prediction is reported as a correction.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input or no category"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := parseFlexibleTime(req.Date)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.CreateTransaction(c.Request.Context(), userID, services.CreateTransactionInput{
		AccountID:                 req.AccountID,
		Description:               req.Description,
		Amount:                    req.Amount,
		Date:                      date,
		Category:                  req.Category,
		OriginalPredictedCategory: req.OriginalPredictedCategory,
		MCC:                       req.MCC,
		IPAddress:                 c.ClientIP(),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetAccountTransactions handles the retrieval of transactions for a specific account
// @Summary     Get account transactions
// @Description Get a paginated list of transactions for a specific account with optional filters
// @Tags        accounts,transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string true  "Account ID"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Param       from_date  query string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date    query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Param       type       query string false "Filter by transaction type (income, expense)"
// @Param       category   query string false "Filter by category name"
// @Param       min_amount query number false "Filter by minimum signed amount"
// @Param       max_amount query number false "Filter by maximum signed amount"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/transactions [get]
func (h *TransactionHandler) GetAccountTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetAccountTransactions(userID, accountID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUserTransactions handles the retrieval of all transactions for the authenticated user
// @Summary     Get user transactions
// @Description Get a paginated list of the user's transactions, newest first, with optional filters
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Param       account_id query string false "Filter by account ID"
// @Param       from_date  query string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date    query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Param       type       query string false "Filter by transaction type (income, expense)"
// @Param       category   query string false "Filter by category name"
// @Param       min_amount query number false "Filter by minimum signed amount"
// @Param       max_amount query number false "Filter by maximum signed amount"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if v := c.Query("account_id"); v != "" {
		accountID, parseErr := uuid.Parse(v)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid account_id"))
			return
		}
		filter.AccountID = &accountID
	}

	result, err := h.transactionService.GetUserTransactions(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		if txType != models.TransactionTypeIncome && txType != models.TransactionTypeExpense {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income or expense")
		}
		filter.Type = &txType
	}

	if v := c.Query("category"); v != "" {
		filter.Category = &v
	}

	for _, bound := range []struct {
		param string
		dst   **float64
	}{
		{"min_amount", &filter.MinAmount},
		{"max_amount", &filter.MaxAmount},
	} {
		v := c.Query(bound.param)
		if v == "" {
			continue
		}
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+bound.param)
		}
		*bound.dst = &amount
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction with its account
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
// Omitted fields are left unchanged.
type UpdateTransactionRequest struct {
	Description *string                 `json:"description" binding:"omitempty,max=500"`
	Amount      *float64                `json:"amount"`
	Date        *string                 `json:"date"`
	Category    *string                 `json:"category" binding:"omitempty,max=100"`
	Type        *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
}

// UpdateTransaction handles updating an existing transaction
// @Summary     Update transaction
// @Description Update a transaction. The account balance moves by the amount difference; a category change is reported to the ML service.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fields := services.TransactionUpdateFields{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		Type:        req.Type,
		IPAddress:   c.ClientIP(),
	}
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		fields.Date = &parsed
	}

	transaction, err := h.transactionService.UpdateTransaction(c.Request.Context(), userID, txID, fields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles the deletion of a transaction
// @Summary     Delete transaction
// @Description Delete a transaction and reverse its effect on the account balance
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction deleted successfully"})
}

// PredictCategoryRequest carries one description to categorize.
type PredictCategoryRequest struct {
	Description string `json:"description" binding:"required,max=500"`
}

// PredictCategory handles a read-only category prediction
// @Summary     Predict a category
// @Description Ask the ML service for a category without saving anything
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PredictCategoryRequest true "Description to categorize"
// @Success     200 {object} services.CategoryPrediction "Prediction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Categorization service unavailable"
// @Router      /transactions/predict-category [post]
func (h *TransactionHandler) PredictCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PredictCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	prediction, err := h.transactionService.PredictCategory(c.Request.Context(), userID, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, prediction)
}

// PredictBatchRequest carries several descriptions to categorize.
type PredictBatchRequest struct {
	Descriptions []string `json:"descriptions" binding:"required,min=1,max=100,dive,max=500"`
}

// PredictBatchResponse lists predictions in request order.
type PredictBatchResponse struct {
	Predictions []services.CategoryPrediction `json:"predictions"`
}

// PredictBatch handles read-only category prediction for several descriptions
// @Summary     Predict categories in bulk
// @Description Predict a category for each description. Results keep request order; a failed item has a null category and an error message.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PredictBatchRequest true "Descriptions to categorize"
// @Success     200 {object} PredictBatchResponse "Predictions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/predict-batch [post]
func (h *TransactionHandler) PredictBatch(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PredictBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if len(req.Descriptions) > maxPredictBatch {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
			"at most "+strconv.Itoa(maxPredictBatch)+" descriptions per request"))
		return
	}

	predictions, err := h.transactionService.PredictBatch(c.Request.Context(), userID, req.Descriptions)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, PredictBatchResponse{Predictions: predictions})
}
