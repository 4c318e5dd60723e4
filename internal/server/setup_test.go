package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"fintrack/internal/corrections"
	"fintrack/internal/handlers"
	"fintrack/internal/logger"
	"fintrack/internal/mlclient"
	"fintrack/internal/services"
	"fintrack/internal/testutil"
	"fintrack/internal/validator"
)

const testPipelineKey = "pipeline-secret"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// fakeML stands in for the categorization service. Descriptions are matched
// by substring against responses; anything unmatched gets a 500.
type fakeML struct {
	server    *httptest.Server
	responses map[string]string

	mu          sync.Mutex
	corrections []mlclient.Correction
}

func newFakeML(t *testing.T) *fakeML {
	t.Helper()

	f := &fakeML{responses: map[string]string{
		"Silpo":   `{"category_id": 1}`,
		"Uber":    `{"category": "Транспорт"}`,
		"Aroma":   `{"category_name": "Кафе"}`,
		"Rozetka": `{"category": "3"}`,
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /categorize", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for key, resp := range f.responses {
			if strings.Contains(body.Description, key) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(resp))
				return
			}
		}
		http.Error(w, "model not ready", http.StatusInternalServerError)
	})
	mux.HandleFunc("POST /submit-correction", func(w http.ResponseWriter, r *http.Request) {
		var c mlclient.Correction
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.corrections = append(f.corrections, c)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /user-model-status/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"last_trained":"2024-06-01T03:00:00Z"}`))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeML) received() []mlclient.Correction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mlclient.Correction(nil), f.corrections...)
}

// testApp holds the full application stack backed by in-memory SQLite and a fake ML service.
type testApp struct {
	DB         *gorm.DB
	Router     *gin.Engine
	ML         *fakeML
	Dispatcher *corrections.Dispatcher
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	ml := newFakeML(t)
	mlClient := mlclient.NewClient(ml.server.URL, &http.Client{Timeout: 2 * time.Second})
	dispatcher := corrections.NewDispatcher(corrections.NewHTTPSink(mlClient), corrections.Options{
		QueueSize: 16,
		Workers:   1,
		Timeout:   2 * time.Second,
	})
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	auditService := services.NewAuditService(db)
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	budgetService := services.NewBudgetService(db, services.NewBudgetEstimator(db, services.EstimateOptions{}))
	categoryService := services.NewCategoryService(db, budgetService)
	goalService := services.NewGoalService(db)
	transactionService := services.NewTransactionService(db, services.TransactionServiceDeps{
		Accounts:    accountService,
		Categories:  categoryService,
		Budgets:     budgetService,
		Categorizer: mlClient,
		Corrections: dispatcher,
		Audit:       auditService,
	})

	router := NewRouter(Handlers{
		Auth:         handlers.NewAuthHandler(userService, auditService),
		Accounts:     handlers.NewAccountHandler(accountService, auditService),
		Categories:   handlers.NewCategoryHandler(categoryService, auditService),
		Transactions: handlers.NewTransactionHandler(transactionService),
		Budgets:      handlers.NewBudgetHandler(budgetService, auditService),
		Goals:        handlers.NewGoalHandler(goalService),
		ML:           handlers.NewMLHandler(mlClient),
	}, Options{
		PipelineAPIKey: testPipelineKey,
		Health:         func() gin.H { return gin.H{"corrections": dispatcher.Stats()} },
	})

	return &testApp{DB: db, Router: router, ML: ml, Dispatcher: dispatcher}
}

// flushCorrections waits for every queued correction to reach the fake ML service.
func (app *testApp) flushCorrections(t *testing.T) []mlclient.Correction {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Dispatcher.Close(ctx); err != nil {
		t.Fatalf("failed to drain corrections: %v", err)
	}
	return app.ML.received()
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, body: %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser registers a new user and returns the access token and user ID.
func (app *testApp) registerUser(t *testing.T, email string) (token, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"password123","first_name":"Test","last_name":"User"}`, email)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), user["id"].(string)
}

// createAccount opens an account and returns its ID.
func (app *testApp) createAccount(t *testing.T, token string, initialBalance float64) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":"Monobank","type":"card","currency":"UAH","initial_balance":%v}`, initialBalance)
	rec := app.request("POST", "/api/v1/accounts", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["account"].(map[string]interface{})["id"].(string)
}

// accountBalance reads the current account balance through the API.
func (app *testApp) accountBalance(t *testing.T, token, accountID string) float64 {
	t.Helper()
	rec := app.request("GET", "/api/v1/accounts/"+accountID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["account"].(map[string]interface{})["balance"].(float64)
}

// createTransaction posts a transaction and returns the decoded transaction object.
func (app *testApp) createTransaction(t *testing.T, token, body string) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["transaction"].(map[string]interface{})
}
