package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/lab-portal-api/pkg/auth"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

type AuthMiddleware struct {
	jwt       auth.JWTService
	adminRole string
}

func NewAuthMiddleware(jwt auth.JWTService, adminRole string) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:       jwt,
		adminRole: adminRole,
	}
}

// OptionalAuth identifies the caller when a valid bearer token is sent.
// Requests without one, or with an unusable one, continue as anonymous.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if ok {
			claims, err := m.jwt.ValidateToken(token)
			if err == nil {
				_, err = subject(claims)
			}
			if err == nil {
				setClaims(c, claims)
			} else {
				log.Debug().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("ignoring invalid token")
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects requests without a valid token carrying the admin role.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}
		if !claims.HasRole(m.adminRole) {
			httputil.RespondWithError(c, apperrors.Forbidden(nil))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// UserID returns the authenticated caller, or nil for anonymous requests.
func UserID(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

// setClaims records the claims; the user id only when the subject is one.
func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextClaims, claims)
	if id, err := subject(claims); err == nil {
		c.Set(ContextUserID, id)
	}
}

func subject(claims *auth.Claims) (uuid.UUID, error) {
	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("token subject is the nil uuid")
	}
	return id, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
