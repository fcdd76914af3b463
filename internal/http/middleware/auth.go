package middleware

import (
	"errors"
	"net/http"
	"strings"

	"freight-backend/internal/domain"
	"freight-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

// IdentityClaims is the token issued by the identity provider.
type IdentityClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired verifies an HS256 bearer token and stores the caller in the
// context. Without a secret every request is refused.
func AuthRequired(secret string) gin.HandlerFunc {
	key := []byte(strings.TrimSpace(secret))
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		if len(key) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "IDENTITY_JWT_SECRET belum dikonfigurasi",
				"request_id": GetRequestID(c),
			})
			return
		}

		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var claims IdentityClaims
			_, err = parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil })
			if err == nil {
				userID := utils.FirstNonEmpty(claims.UserID, claims.Subject)
				if userID == "" {
					err = errors.New("token tanpa subject")
				} else {
					c.Set(UserIDKey, userID)
					c.Set(UserRoleKey, strings.ToLower(strings.TrimSpace(claims.Role)))
					c.Next()
					return
				}
			}
		}

		utils.LogSecurity(GetRequestID(c), "auth", "verify", "token rejected: "+err.Error())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":      "unauthorized",
			"request_id": GetRequestID(c),
		})
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("authorization header kosong")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("format authorization tidak valid")
	}
	return strings.TrimSpace(token), nil
}

// ActorFrom returns the caller stored by AuthRequired.
func ActorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{UserID: c.GetString(UserIDKey), Role: c.GetString(UserRoleKey)}
}
