package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("test-secret", time.Minute)

	token, err := v.Issue("deployer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "deployer" {
		t.Errorf("Subject = %q", claims.Subject)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a", time.Minute).Issue("deployer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewVerifier("secret-b", time.Minute).Verify(token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	token, err := NewVerifier("secret", -time.Minute).Issue("deployer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewVerifier("secret", time.Minute).Verify(token); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret", time.Minute)
	handler := v.Middleware("/api/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/apps", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, _ := v.Issue("deployer")
		req := httptest.NewRequest("GET", "/api/apps", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("skipped path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/apps", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}
