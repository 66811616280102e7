package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "alchemy/pkg/errors"
	"alchemy/pkg/utils/contextkey"
	"alchemy/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const subjectContextKey = "subject"

// AuthConfig configures HS256 bearer token validation.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
	// Roles allowed to call guarded routes. Empty allows any valid token.
	Roles []string `yaml:"roles"`
}

// Claims is the token payload accepted by the service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
	roles  []string
	now    func() time.Time
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		roles:  cfg.Roles,
		now:    time.Now,
	}
}

// Authenticate parses raw and checks signature, expiry, issuer and role.
func (a *Authenticator) Authenticate(raw string) (*Claims, error) {
	if raw == "" || len(a.secret) == 0 {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if len(a.roles) > 0 && !hasRole(claims.Role, a.roles) {
		return nil, pkgerrors.New(pkgerrors.Forbidden).WithMessage("insufficient role")
	}
	return claims, nil
}

// Sign issues a token for subject. Used by tooling and tests.
func (a *Authenticator) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			response.AbortWithError(c, pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("auth unavailable"))
			return
		}
		claims, err := auth.Authenticate(extractBearerToken(c.GetHeader("Authorization")))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Set(subjectContextKey, claims.Subject)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasRole(role string, allowed []string) bool {
	for _, item := range allowed {
		if strings.EqualFold(role, item) {
			return true
		}
	}
	return false
}
