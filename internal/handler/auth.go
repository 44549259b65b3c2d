package handler

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/domain"
)

const currentUserKey = "current_user"

// WebhookSecretHeader 支付回调和运维接口的共享密钥
const WebhookSecretHeader = "X-Webhook-Secret"

// Claims 认证服务签发的令牌，sub 为用户 ID
type Claims struct {
	Verified bool `json:"verified"`
	jwt.RegisteredClaims
}

// Authenticator 校验 HS256 令牌
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator 创建认证器，issuer 为空时不校验签发方
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Issue 签发令牌
func (a *Authenticator) Issue(user domain.CurrentUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Verified: user.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse 解析令牌得到调用方身份
func (a *Authenticator) Parse(token string) (domain.CurrentUser, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return domain.CurrentUser{}, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.CurrentUser{}, fmt.Errorf("invalid subject %q: %w", claims.Subject, err)
	}
	return domain.CurrentUser{ID: id, Verified: claims.Verified}, nil
}

// Middleware 要求 Bearer 令牌
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			ErrorResponse(c, http.StatusUnauthorized, apperr.CodeUnauthorized, "missing bearer token")
			return
		}
		user, err := a.Parse(raw)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			ErrorResponse(c, http.StatusUnauthorized, apperr.CodeUnauthorized, msg)
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// WebhookGuard 校验共享密钥，secret 为空时拒绝所有请求
func WebhookGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(WebhookSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			ErrorResponse(c, http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid webhook secret")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.CurrentUser {
	user, _ := c.MustGet(currentUserKey).(domain.CurrentUser)
	return user
}
