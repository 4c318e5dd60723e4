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

const testGoalID = "01890a5d-ac96-774b-bcce-b302099a9005"

type mockGoalService struct {
	createGoalFn   func(userID, name string, target, current float64, deadline *time.Time, category string) (*models.FinancialGoal, error)
	getUserGoalsFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialGoal], error)
	getGoalByIDFn  func(userID, goalID string) (*models.FinancialGoal, error)
	updateGoalFn   func(userID, goalID string, fields services.GoalUpdateFields) (*models.FinancialGoal, error)
	deleteGoalFn   func(userID, goalID string) error
}

func (m *mockGoalService) CreateGoal(userID, name string, target, current float64, deadline *time.Time, category string) (*models.FinancialGoal, error) {
	if m.createGoalFn != nil {
		return m.createGoalFn(userID, name, target, current, deadline, category)
	}
	return &models.FinancialGoal{}, nil
}

func (m *mockGoalService) GetUserGoals(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancialGoal], error) {
	if m.getUserGoalsFn != nil {
		return m.getUserGoalsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.FinancialGoal{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockGoalService) GetGoalByID(userID, goalID string) (*models.FinancialGoal, error) {
	if m.getGoalByIDFn != nil {
		return m.getGoalByIDFn(userID, goalID)
	}
	return &models.FinancialGoal{}, nil
}

func (m *mockGoalService) UpdateGoal(userID, goalID string, fields services.GoalUpdateFields) (*models.FinancialGoal, error) {
	if m.updateGoalFn != nil {
		return m.updateGoalFn(userID, goalID, fields)
	}
	return &models.FinancialGoal{}, nil
}

func (m *mockGoalService) DeleteGoal(userID, goalID string) error {
	if m.deleteGoalFn != nil {
		return m.deleteGoalFn(userID, goalID)
	}
	return nil
}

var _ services.GoalServicer = (*mockGoalService)(nil)

func setupGoalRouter(handler *GoalHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/goals", handler.CreateGoal)
	auth.GET("/goals", handler.GetGoals)
	auth.GET("/goals/:id", handler.GetGoal)
	auth.PUT("/goals/:id", handler.UpdateGoal)
	auth.DELETE("/goals/:id", handler.DeleteGoal)
	return r
}

func TestGoalHandler_CreateGoal(t *testing.T) {
	t.Run("returns 201 with deadline", func(t *testing.T) {
		var gotDeadline *time.Time
		goalSvc := &mockGoalService{
			createGoalFn: func(userID, name string, target, current float64, deadline *time.Time, _ string) (*models.FinancialGoal, error) {
				gotDeadline = deadline
				return &models.FinancialGoal{Base: models.Base{ID: testGoalID}, UserID: userID, Name: name, TargetAmount: target, CurrentAmount: current}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc))

		rec := doRequest(r, "POST", "/goals", `{"name":"Відпустка","target_amount":30000,"current_amount":500,"deadline":"2025-07-01"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		goal := parseJSON(t, rec)["goal"].(map[string]interface{})
		if goal["target_amount"].(float64) != 30000 {
			t.Errorf("unexpected goal %v", goal)
		}
		if gotDeadline == nil || gotDeadline.Year() != 2025 {
			t.Errorf("expected 2025 deadline, got %v", gotDeadline)
		}
	})

	t.Run("open ended goal has nil deadline", func(t *testing.T) {
		var gotDeadline *time.Time
		called := false
		goalSvc := &mockGoalService{
			createGoalFn: func(_, _ string, _, _ float64, deadline *time.Time, _ string) (*models.FinancialGoal, error) {
				called, gotDeadline = true, deadline
				return &models.FinancialGoal{}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc))

		rec := doRequest(r, "POST", "/goals", `{"name":"Подушка","target_amount":10000}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if !called || gotDeadline != nil {
			t.Errorf("expected nil deadline, got %v", gotDeadline)
		}
	})

	t.Run("returns 400 on non-positive target", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}))

		rec := doRequest(r, "POST", "/goals", `{"name":"X","target_amount":-5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestGoalHandler_GetGoal(t *testing.T) {
	t.Run("returns 404 when not found", func(t *testing.T) {
		goalSvc := &mockGoalService{
			getGoalByIDFn: func(_, _ string) (*models.FinancialGoal, error) {
				return nil, apperrors.ErrGoalNotFound
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc))

		rec := doRequest(r, "GET", "/goals/"+testGoalID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_NOT_FOUND")
	})
}

func TestGoalHandler_GetGoals(t *testing.T) {
	t.Run("returns 200", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}))

		rec := doRequest(r, "GET", "/goals", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if _, ok := parseJSON(t, rec)["data"].([]interface{}); !ok {
			t.Error("expected data array")
		}
	})
}

func TestGoalHandler_UpdateGoal(t *testing.T) {
	t.Run("forwards provided fields", func(t *testing.T) {
		var got services.GoalUpdateFields
		goalSvc := &mockGoalService{
			updateGoalFn: func(_, id string, fields services.GoalUpdateFields) (*models.FinancialGoal, error) {
				got = fields
				return &models.FinancialGoal{Base: models.Base{ID: id}, CurrentAmount: *fields.CurrentAmount}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc))

		rec := doRequest(r, "PUT", "/goals/"+testGoalID, `{"current_amount":1200}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.CurrentAmount == nil || *got.CurrentAmount != 1200 || got.Name != nil || got.Deadline != nil {
			t.Errorf("unexpected fields %+v", got)
		}
	})
}

func TestGoalHandler_DeleteGoal(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}))

		rec := doRequest(r, "DELETE", "/goals/"+testGoalID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}))

		rec := doRequest(r, "DELETE", "/goals/x", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
