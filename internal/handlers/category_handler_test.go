package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

const testCategoryID = "01890a5d-ac96-774b-bcce-b302099a9003"

// --- mock category service ---

type mockCategoryService struct {
	createCategoryFn    func(userID, name string, categoryType models.CategoryType, description string) (*models.Category, error)
	getUserCategoriesFn func(userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	getCategoryByIDFn   func(userID, categoryID string) (*models.Category, error)
	updateCategoryFn    func(userID, categoryID string, fields services.CategoryUpdateFields) (*models.Category, error)
	deleteCategoryFn    func(userID, categoryID string) error
	ensureCategoryFn    func(userID, name string, categoryType models.CategoryType) (*models.Category, bool, error)
	syncFn              func(userID string) (*services.CategorySyncResult, error)
}

func (m *mockCategoryService) CreateCategory(userID, name string, categoryType models.CategoryType, description string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, categoryType, description)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetUserCategories(userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error) {
	if m.getUserCategoriesFn != nil {
		return m.getUserCategoriesFn(userID, page, categoryType)
	}
	resp := pagination.NewPageResponse([]models.Category{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(userID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(userID, categoryID string, fields services.CategoryUpdateFields) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, categoryID, fields)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

func (m *mockCategoryService) EnsureCategory(userID, name string, categoryType models.CategoryType) (*models.Category, bool, error) {
	if m.ensureCategoryFn != nil {
		return m.ensureCategoryFn(userID, name, categoryType)
	}
	return &models.Category{Name: name, Type: categoryType}, false, nil
}

func (m *mockCategoryService) SyncFromTransactions(userID string) (*services.CategorySyncResult, error) {
	if m.syncFn != nil {
		return m.syncFn(userID)
	}
	return &services.CategorySyncResult{Created: []string{}, Updated: []string{}}, nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/categories", handler.CreateCategory)
	auth.GET("/categories", handler.GetUserCategories)
	auth.POST("/categories/sync", handler.SyncCategories)
	auth.GET("/categories/:id", handler.GetCategoryByID)
	auth.PUT("/categories/:id", handler.UpdateCategory)
	auth.DELETE("/categories/:id", handler.DeleteCategory)
	return r
}

func TestCategoryHandler_CreateCategory(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotType models.CategoryType
		catSvc := &mockCategoryService{
			createCategoryFn: func(userID, name string, categoryType models.CategoryType, description string) (*models.Category, error) {
				gotType = categoryType
				return &models.Category{Base: models.Base{ID: testCategoryID}, UserID: &userID, Name: name, Type: categoryType}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Кафе","type":"expense"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		category := parseJSON(t, rec)["category"].(map[string]interface{})
		if category["name"] != "Кафе" {
			t.Errorf("unexpected category %v", category)
		}
		if gotType != models.CategoryTypeExpense {
			t.Errorf("expected expense, got %q", gotType)
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"type":"expense"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on invalid type", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"X","type":"savings"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate", func(t *testing.T) {
		catSvc := &mockCategoryService{
			createCategoryFn: func(_, _ string, _ models.CategoryType, _ string) (*models.Category, error) {
				return nil, apperrors.ErrDuplicateCategory
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Кафе"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_CATEGORY")
	})
}

func TestCategoryHandler_GetUserCategories(t *testing.T) {
	t.Run("passes type filter", func(t *testing.T) {
		var gotType *models.CategoryType
		catSvc := &mockCategoryService{
			getUserCategoriesFn: func(_ string, _ pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error) {
				gotType = categoryType
				resp := pagination.NewPageResponse([]models.Category{{Name: "Зарплата"}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories?type=income", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotType == nil || *gotType != models.CategoryTypeIncome {
			t.Errorf("expected income filter, got %v", gotType)
		}
		data := parseJSON(t, rec)["data"].([]interface{})
		if len(data) != 1 {
			t.Errorf("expected 1 category, got %d", len(data))
		}
	})

	t.Run("returns 400 on invalid type", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories?type=other", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCategoryHandler_GetCategoryByID(t *testing.T) {
	t.Run("returns 404 when not found", func(t *testing.T) {
		catSvc := &mockCategoryService{
			getCategoryByIDFn: func(_, _ string) (*models.Category, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories/"+testCategoryID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories/12", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCategoryHandler_UpdateCategory(t *testing.T) {
	t.Run("forwards provided fields", func(t *testing.T) {
		var got services.CategoryUpdateFields
		catSvc := &mockCategoryService{
			updateCategoryFn: func(_, id string, fields services.CategoryUpdateFields) (*models.Category, error) {
				got = fields
				return &models.Category{Base: models.Base{ID: id}, Name: *fields.Name}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/categories/"+testCategoryID, `{"name":"Ресторани"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Name == nil || *got.Name != "Ресторани" || got.Type != nil || got.Description != nil {
			t.Errorf("unexpected fields %+v", got)
		}
	})
}

func TestCategoryHandler_DeleteCategory(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/categories/"+testCategoryID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestCategoryHandler_SyncCategories(t *testing.T) {
	t.Run("returns created and updated lists", func(t *testing.T) {
		catSvc := &mockCategoryService{
			syncFn: func(userID string) (*services.CategorySyncResult, error) {
				if userID != testUserID {
					t.Errorf("unexpected user %s", userID)
				}
				return &services.CategorySyncResult{Created: []string{"Продукти"}, Updated: []string{"Продукти"}}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, audit))

		rec := doRequest(r, "POST", "/categories/sync", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if len(result["created"].([]interface{})) != 1 || len(result["updated"].([]interface{})) != 1 {
			t.Errorf("unexpected result %v", result)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditActionSyncCategories {
			t.Errorf("expected sync audit entry, got %+v", audit.entries)
		}
	})

	t.Run("empty sync is not audited", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, audit))

		rec := doRequest(r, "POST", "/categories/sync", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if created, ok := result["created"].([]interface{}); !ok || len(created) != 0 {
			t.Errorf("expected empty created list, got %v", result["created"])
		}
		if len(audit.entries) != 0 {
			t.Errorf("expected no audit entries, got %+v", audit.entries)
		}
	})

	t.Run("returns 500 on failure", func(t *testing.T) {
		catSvc := &mockCategoryService{
			syncFn: func(string) (*services.CategorySyncResult, error) {
				return nil, errors.New("db gone")
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories/sync", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestCategoryHandler_SyncUserCategories(t *testing.T) {
	setup := func(catSvc *mockCategoryService, key string) *gin.Engine {
		r := gin.New()
		pipeline := r.Group("/pipeline", middleware.PipelineAuthMiddleware(key))
		pipeline.POST("/users/:id/categories/sync", NewCategoryHandler(catSvc, &mockAuditService{}).SyncUserCategories)
		return r
	}

	t.Run("syncs the path user with a valid key", func(t *testing.T) {
		var gotUser string
		catSvc := &mockCategoryService{
			syncFn: func(userID string) (*services.CategorySyncResult, error) {
				gotUser = userID
				return &services.CategorySyncResult{Created: []string{}, Updated: []string{}}, nil
			},
		}
		r := setup(catSvc, "pipeline-key")

		req := newRequest("POST", "/pipeline/users/"+testOtherID+"/categories/sync", "")
		req.Header.Set("X-API-Key", "pipeline-key")
		rec := serveRequest(r, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotUser != testOtherID {
			t.Errorf("expected %s, got %s", testOtherID, gotUser)
		}
	})

	t.Run("returns 401 with a wrong key", func(t *testing.T) {
		r := setup(&mockCategoryService{}, "pipeline-key")

		req := newRequest("POST", "/pipeline/users/"+testOtherID+"/categories/sync", "")
		req.Header.Set("X-API-Key", "nope")
		rec := serveRequest(r, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_API_KEY")
	})

	t.Run("returns 400 on invalid user id", func(t *testing.T) {
		r := setup(&mockCategoryService{}, "pipeline-key")

		req := newRequest("POST", "/pipeline/users/me/categories/sync", "")
		req.Header.Set("X-API-Key", "pipeline-key")
		rec := serveRequest(r, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
