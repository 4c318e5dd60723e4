package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
)

var testKey = []byte("test-secret")

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestLogging(), authMiddleware(func() []byte { return testKey }))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	user := &models.User{Base: models.Base{ID: "01890a5d-ac96-774b-bcce-b302099a8057"}, Email: "a@b.c"}
	now := time.Now()

	valid, err := generateToken(user, testKey, time.Hour, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	expired, _ := generateToken(user, testKey, time.Hour, now.Add(-2*time.Hour))
	foreign, _ := generateToken(user, []byte("other-secret"), time.Hour, now)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid_token", "Bearer " + valid, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Token " + valid, http.StatusUnauthorized},
		{"expired_token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong_secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(protectedRouter(), req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if code := errorCode(t, rec); code != apperrors.ErrUnauthorized.Code {
					t.Errorf("error code = %q", code)
				}
			}
			if rec.Header().Get(requestIDHeader) == "" {
				t.Error("expected a request id header")
			}
		})
	}
}

func TestParseAccessToken(t *testing.T) {
	user := &models.User{Base: models.Base{ID: "user-1"}, Email: "a@b.c"}
	token, err := generateToken(user, testKey, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, testKey)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Subject != "user-1" || claims.Email != "a@b.c" {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := generateToken(&models.User{}, testKey, time.Minute, time.Now()); err == nil {
		t.Error("expected an error for a user without id")
	}
}

func TestRequestLogging_ReusesInboundID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	inbound := "01890a5d-ac96-774b-bcce-b302099a8057"
	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.Header.Set(requestIDHeader, inbound)
	rec := serve(r, req)
	if rec.Header().Get(requestIDHeader) != inbound || rec.Body.String() != inbound {
		t.Errorf("expected inbound id to be reused, got header %q body %q", rec.Header().Get(requestIDHeader), rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.Header.Set(requestIDHeader, "bogus")
	rec = serve(r, req)
	if got := rec.Header().Get(requestIDHeader); got == "bogus" || got == "" {
		t.Errorf("expected a fresh id, got %q", got)
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(apperrors.ErrBudgetNotFound) })
	r.GET("/raw", func(c *gin.Context) { _ = c.Error(http.ErrBodyNotAllowed) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/app", http.NoBody))
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "BUDGET_NOT_FOUND" {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/raw", http.NoBody))
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "INTERNAL_ERROR" {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
