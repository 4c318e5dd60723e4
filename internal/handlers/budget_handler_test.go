package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

const testBudgetID = "01890a5d-ac96-774b-bcce-b302099a9004"

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn      func(userID string, input services.CreateBudgetInput) (*models.Budget, error)
	getUserBudgetsFn    func(userID string, page pagination.PageRequest, status *models.BudgetStatus, category *string) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn     func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn      func(userID, budgetID string, fields services.BudgetUpdateFields) (*models.Budget, error)
	deleteBudgetFn      func(userID, budgetID string) error
	getBudgetProgressFn func(userID, budgetID string) (*services.BudgetProgress, error)
	ensureFn            func(userID, categoryName string) (*services.BudgetReconcileResult, error)
}

func (m *mockBudgetService) CreateBudget(userID string, input services.CreateBudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, page pagination.PageRequest, status *models.BudgetStatus, category *string) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, status, category)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, budgetID string, fields services.BudgetUpdateFields) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, fields)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) GetBudgetProgress(userID, budgetID string) (*services.BudgetProgress, error) {
	if m.getBudgetProgressFn != nil {
		return m.getBudgetProgressFn(userID, budgetID)
	}
	return &services.BudgetProgress{}, nil
}

func (m *mockBudgetService) EnsureBudgetForCategory(userID, categoryName string) (*services.BudgetReconcileResult, error) {
	if m.ensureFn != nil {
		return m.ensureFn(userID, categoryName)
	}
	return &services.BudgetReconcileResult{Budget: &models.Budget{Category: categoryName}}, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.POST("/budgets/reconcile", handler.ReconcileBudget)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	auth.GET("/budgets/:id/progress", handler.GetBudgetProgress)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 and parses dates", func(t *testing.T) {
		var got services.CreateBudgetInput
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(userID string, input services.CreateBudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{
					Base:     models.Base{ID: testBudgetID},
					UserID:   userID,
					Name:     input.Category,
					Category: input.Category,
					Limit:    input.Limit,
					Status:   models.BudgetStatusActive,
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, audit))

		rec := doRequest(r, "POST", "/budgets",
			`{"category":"Кафе","limit":1500,"start_date":"2024-03-01","end_date":"2024-03-31T23:59:59Z"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["limit"].(float64) != 1500 || budget["category"] != "Кафе" {
			t.Errorf("unexpected budget %v", budget)
		}
		if !got.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected start %v", got.StartDate)
		}
		if got.EndDate.Day() != 31 {
			t.Errorf("unexpected end %v", got.EndDate)
		}
		if len(audit.entries) != 1 || audit.entries[0].resourceID != testBudgetID {
			t.Errorf("expected create audit entry, got %+v", audit.entries)
		}
	})

	t.Run("leaves dates zero when omitted", func(t *testing.T) {
		var got services.CreateBudgetInput
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(_ string, input services.CreateBudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{Base: models.Base{ID: testBudgetID}}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"category":"Кафе"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if !got.StartDate.IsZero() || !got.EndDate.IsZero() {
			t.Errorf("expected zero dates, got %v %v", got.StartDate, got.EndDate)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing category", `{"limit":100}`},
		{"negative limit", `{"category":"Кафе","limit":-1}`},
		{"bad status", `{"category":"Кафе","status":"paused"}`},
		{"bad start date", `{"category":"Кафе","start_date":"March"}`},
		{"bad account id", `{"category":"Кафе","account_id":"5"}`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/budgets", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("passes filters", func(t *testing.T) {
		var gotStatus *models.BudgetStatus
		var gotCategory *string
		budgetSvc := &mockBudgetService{
			getUserBudgetsFn: func(_ string, _ pagination.PageRequest, status *models.BudgetStatus, category *string) (*pagination.PageResponse[models.Budget], error) {
				gotStatus, gotCategory = status, category
				resp := pagination.NewPageResponse([]models.Budget{{Category: "Transport"}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?status=overspent&category=Transport", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotStatus == nil || *gotStatus != models.BudgetStatusOverspent {
			t.Errorf("expected overspent filter, got %v", gotStatus)
		}
		if gotCategory == nil || *gotCategory != "Transport" {
			t.Errorf("expected category filter, got %v", gotCategory)
		}
	})

	t.Run("returns 400 on unknown status", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?status=paused", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	t.Run("returns 404 when not found", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetByIDFn: func(_, _ string) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("forwards provided fields", func(t *testing.T) {
		var got services.BudgetUpdateFields
		budgetSvc := &mockBudgetService{
			updateBudgetFn: func(_, id string, fields services.BudgetUpdateFields) (*models.Budget, error) {
				got = fields
				return &models.Budget{Base: models.Base{ID: id}, Limit: *fields.Limit, Status: *fields.Status}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"limit":0,"status":"completed","end_date":"2024-05-31"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Limit == nil || *got.Limit != 0 {
			t.Errorf("expected explicit zero limit, got %v", got.Limit)
		}
		if got.EndDate == nil || got.EndDate.Month() != time.May {
			t.Errorf("expected May end date, got %v", got.EndDate)
		}
		if got.Name != nil || got.Category != nil || got.StartDate != nil {
			t.Errorf("unexpected fields %+v", got)
		}
	})

	t.Run("returns 400 on bad end date", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"end_date":"soon"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 and audits", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, audit))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "DELETE_BUDGET" {
			t.Errorf("expected delete audit entry, got %+v", audit.entries)
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			deleteBudgetFn: func(_, _ string) error { return apperrors.ErrBudgetNotFound },
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudgetProgress(t *testing.T) {
	t.Run("returns progress", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetProgressFn: func(_, id string) (*services.BudgetProgress, error) {
				return &services.BudgetProgress{BudgetID: id, Budgeted: 1000, Spent: 250, Remaining: 750, Percentage: 25}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/progress", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		progress := parseJSON(t, rec)["progress"].(map[string]interface{})
		if progress["spent"].(float64) != 250 || progress["percentage"].(float64) != 25 {
			t.Errorf("unexpected progress %v", progress)
		}
	})
}

func TestBudgetHandler_ReconcileBudget(t *testing.T) {
	t.Run("returns the reconcile result", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			ensureFn: func(_, category string) (*services.BudgetReconcileResult, error) {
				return &services.BudgetReconcileResult{
					Updated:     true,
					LimitRaised: true,
					Budget:      &models.Budget{Base: models.Base{ID: testBudgetID}, Category: category, Limit: 610},
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, audit))

		rec := doRequest(r, "POST", "/budgets/reconcile", `{"category":"Кафе"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["limit_raised"] != true || result["created"] != false {
			t.Errorf("unexpected result %v", result)
		}
		if len(audit.entries) != 1 {
			t.Errorf("expected one audit entry, got %+v", audit.entries)
		}
	})

	t.Run("unchanged budget is not audited", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, audit))

		rec := doRequest(r, "POST", "/budgets/reconcile", `{"category":"Кафе"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.entries) != 0 {
			t.Errorf("expected no audit entries, got %+v", audit.entries)
		}
	})

	t.Run("returns 400 without category", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/reconcile", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
