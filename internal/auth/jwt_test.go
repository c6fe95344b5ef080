package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inbound-genie/internal/config"

	"github.com/gin-gonic/gin"
)

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "authenticated"})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return v
}

func TestSignAndVerify(t *testing.T) {
	v := newVerifier(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := v.Sign(now, Identity{UserID: "user-1", Role: RoleAuthenticated}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id := claims.Identity()
	if id.UserID != "user-1" || id.AccountID != "user-1" || id.Role != RoleAuthenticated {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentity_Roles(t *testing.T) {
	v := newVerifier(t)
	now := time.Now()

	admin, _ := v.Sign(now, Identity{UserID: "u", AccountID: "acct-9", Role: RoleAdmin}, time.Hour)
	claims, err := v.Verify(admin, now)
	if err != nil {
		t.Fatalf("verify admin: %v", err)
	}
	if id := claims.Identity(); id.Role != RoleAdmin || id.AccountID != "acct-9" {
		t.Fatalf("unexpected admin identity: %+v", id)
	}

	svc, _ := v.Sign(now, Identity{UserID: "ledgerctl", Role: RoleService}, time.Hour)
	claims, err = v.Verify(svc, now)
	if err != nil {
		t.Fatalf("verify service: %v", err)
	}
	if id := claims.Identity(); id.Role != RoleService {
		t.Fatalf("expected service role, got %+v", id)
	}
}

func TestVerify_RejectsExpiredAndForeign(t *testing.T) {
	v := newVerifier(t)
	now := time.Unix(1700000000, 0).UTC()
	tok, _ := v.Sign(now, Identity{UserID: "u"}, time.Minute)

	if _, err := v.Verify(tok, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	other, _ := NewVerifier(config.AuthConfig{JWTSecret: "other", JWTIssuer: "issuer", JWTAudience: "authenticated"})
	if _, err := other.Verify(tok, now); err == nil {
		t.Fatalf("expected signature mismatch")
	}

	wrongAud, _ := NewVerifier(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "anon"})
	if _, err := wrongAud.Verify(tok, now); err == nil {
		t.Fatalf("expected audience mismatch")
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := newVerifier(t)

	r := gin.New()
	r.GET("/me", RequireAccessToken(v), func(c *gin.Context) {
		acct, err := AccountID(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, acct)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	tok, _ := v.Sign(time.Now(), Identity{UserID: "user-7"}, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "user-7" {
		t.Fatalf("expected 200 user-7, got %d %q", w.Code, w.Body.String())
	}
}
