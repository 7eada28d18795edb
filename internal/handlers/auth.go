package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/hash"
	authmw "github.com/grigorev-se/vending-machine/internal/middleware/auth"
	"github.com/grigorev-se/vending-machine/internal/models"
	"github.com/grigorev-se/vending-machine/internal/mykafka"
	"github.com/grigorev-se/vending-machine/internal/service"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *service.TokenService
	Producer *mykafka.Producer
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}
	if !hash.HashedPassword(user.PasswordHash).Verify(req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}
	if !user.Active {
		return echo.NewHTTPError(http.StatusUnauthorized, "account disabled")
	}

	var role models.Role
	if err := h.DB.First(&role, user.RoleID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "role lookup failed")
	}

	otherSession, err := h.Tokens.HasOtherActiveSession(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pair, err := h.Tokens.IssuePair(user.ID, role.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue tokens")
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	resp := echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}
	if otherSession {
		resp["msg"] = "There is already an active session using your account"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token required")
	}

	pair, err := h.Tokens.Rotate(req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "cannot rotate token: "+err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout revokes the presented access token and, when supplied, the
// matching refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	jti, _ := authmw.JTI(c)

	if err := h.Tokens.Revoke(jti, userID); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		if claims, err := h.Tokens.ParseRefresh(req.RefreshToken); err == nil {
			if refreshJTI, ok := claims["jti"].(string); ok {
				if err := h.Tokens.Revoke(refreshJTI, userID); err != nil {
					c.Logger().Errorf("refresh revoke error: %v", err)
				}
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"msg": "logged out"})
}

// LogoutAll revokes every token ever issued to the caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	if err := h.Tokens.RevokeAll(userID); err != nil {
		if errors.Is(err, service.ErrNoUserTokens) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"msg": "all sessions revoked"})
}
