package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/integration-hub/internal/infrastructure/auth"
	"github.com/erp/integration-hub/internal/infrastructure/logger"
	"github.com/erp/integration-hub/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey is the gin context key of the validated admin claims
const ClaimsKey = "jwt_claims"

// TokenValidator validates a bearer token
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AdminAuthConfig configures the admin route guard
type AdminAuthConfig struct {
	Tokens TokenValidator
	// Permission is the permission the token must carry
	Permission string
	Logger     *zap.Logger
}

// AdminAuth requires a valid bearer token carrying cfg.Permission. The
// operator named by the token is attached to the request logger.
func AdminAuth(cfg AdminAuthConfig) gin.HandlerFunc {
	if cfg.Permission == "" {
		cfg.Permission = auth.PermissionAdmin
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortAuth(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing or malformed Authorization header")
			return
		}

		claims, err := cfg.Tokens.Validate(token)
		if err != nil {
			cfg.Logger.Warn("Admin token rejected",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, auth.ErrExpiredToken) {
				abortAuth(c, http.StatusUnauthorized, dto.ErrCodeTokenExpired, "Token has expired")
				return
			}
			abortAuth(c, http.StatusUnauthorized, dto.ErrCodeInvalidToken, "Invalid token")
			return
		}

		if !claims.HasPermission(cfg.Permission) {
			abortAuth(c, http.StatusForbidden, dto.ErrCodeForbidden, "Permission "+cfg.Permission+" is required")
			return
		}

		ctx, _ := logger.WithActor(c.Request.Context(), logger.FromContext(c.Request.Context()), claims.Actor())
		c.Request = c.Request.WithContext(ctx)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the claims validated by AdminAuth, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortAuth(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
