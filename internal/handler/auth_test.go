package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.SetDefaultLogger(logger.NewNop())
	os.Exit(m.Run())
}

func TestAuthenticatorRoundTrip(t *testing.T) {
	a := NewAuthenticator("secret", "ideahub")
	user := domain.CurrentUser{ID: uuid.New(), Verified: true}
	tok, err := a.Issue(user, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != user {
		t.Fatalf("user = %+v, want %+v", got, user)
	}
}

func TestAuthenticatorRejects(t *testing.T) {
	a := NewAuthenticator("secret", "ideahub")
	user := domain.CurrentUser{ID: uuid.New()}

	expired, _ := a.Issue(user, -time.Minute)
	otherKey, _ := NewAuthenticator("other", "ideahub").Issue(user, time.Minute)
	otherIssuer, _ := NewAuthenticator("secret", "elsewhere").Issue(user, time.Minute)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "42",
		Issuer:    "ideahub",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}).SignedString([]byte("secret"))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: user.ID.String(),
		Issuer:  "ideahub",
	}}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: expired, want: jwt.ErrTokenExpired},
		{name: "wrong key", token: otherKey, want: jwt.ErrTokenSignatureInvalid},
		{name: "wrong issuer", token: otherIssuer, want: jwt.ErrTokenInvalidIssuer},
		{name: "no expiry", token: noExpiry, want: jwt.ErrTokenRequiredClaimMissing},
		{name: "bad subject", token: badSubject},
		{name: "garbage", token: "not.a.token", want: jwt.ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Parse(tt.token)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMiddlewareSetsCurrentUser(t *testing.T) {
	a := NewAuthenticator("secret", "")
	user := domain.CurrentUser{ID: uuid.New()}
	tok, _ := a.Issue(user, time.Minute)

	r := gin.New()
	r.GET("/me", a.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, currentUser(c).ID.String())
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + tok, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + tok, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && w.Body.String() != user.ID.String() {
				t.Fatalf("body = %s, want %s", w.Body.String(), user.ID)
			}
		})
	}
}

func TestWebhookGuard(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		status int
	}{
		{name: "match", secret: "s3", header: "s3", status: http.StatusOK},
		{name: "mismatch", secret: "s3", header: "s4", status: http.StatusUnauthorized},
		{name: "unconfigured", secret: "", header: "", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/hook", WebhookGuard(tt.secret), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			req.Header.Set(WebhookSecretHeader, tt.header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := newPagination(2, 20, 41)
	if p.TotalPage != 3 {
		t.Fatalf("total pages = %d, want 3", p.TotalPage)
	}
}
