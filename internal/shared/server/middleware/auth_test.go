package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resumeflow-backend/internal/shared/auth"
)

func authRouter(t *testing.T) (*gin.Engine, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := auth.NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	router := gin.New()
	router.Use(Auth(verifier))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId":   UserIDFromContext(c),
			"hasToken": UserTokenFromContext(c) != "",
		})
	})
	return router, verifier
}

func TestAuthAcceptsValidBearer(t *testing.T) {
	router, verifier := authRouter(t)

	token, err := verifier.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.Code, resp.Body.String())
	}
	if body := resp.Body.String(); !strings.Contains(body, `"userId":"user-1"`) || !strings.Contains(body, `"hasToken":true`) {
		t.Errorf("body = %s", body)
	}
}

func TestAuthRejectsMissingOrBadHeader(t *testing.T) {
	router, _ := authRouter(t)

	for name, header := range map[string]string{
		"missing":     "",
		"not bearer":  "Basic abc",
		"empty token": "Bearer   ",
		"garbage":     "Bearer not.a.jwt",
	} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, resp.Code)
		}
	}
}
