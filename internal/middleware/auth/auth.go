package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/models"
	"github.com/grigorev-se/vending-machine/internal/service"
)

// Guard authenticates requests from the Authorization header and gates
// handlers by role. Authentication failures are 401 and always precede
// the 403 a role mismatch produces.
type Guard struct {
	DB     *gorm.DB
	Tokens *service.TokenService
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

func setUserContext(c echo.Context, claims jwt.MapClaims) {
	if userID, ok := service.ClaimsUserID(claims); ok {
		c.Set("userID", userID)
	}
	if role, ok := claims["role"].(string); ok {
		c.Set("role", role)
	}
	if jti, ok := claims["jti"].(string); ok {
		c.Set("jti", jti)
	}
}

// RequireAuth validates the bearer access token against signature,
// expiry, token type and the revocation registry.
func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		claims, err := g.Tokens.ParseAccess(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		setUserContext(c, claims)
		return next(c)
	}
}

// RequireRole compares the caller's stored role against roleName. It
// reads the role from the database rather than the token so a role
// change takes effect without waiting for token expiry.
func (g *Guard) RequireRole(roleName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get("userID").(uint)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			var user models.User
			if err := g.DB.First(&user, userID).Error; err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			var role models.Role
			if err := g.DB.First(&role, user.RoleID).Error; err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "role not assigned")
			}
			if role.Name != roleName {
				return echo.NewHTTPError(http.StatusForbidden, "you are not a "+roleName)
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated caller's id set by RequireAuth.
func UserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("userID").(uint)
	return userID, ok
}

// JTI returns the access token id set by RequireAuth.
func JTI(c echo.Context) (string, bool) {
	jti, ok := c.Get("jti").(string)
	return jti, ok
}
