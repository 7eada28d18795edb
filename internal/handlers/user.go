package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/hash"
	authmw "github.com/grigorev-se/vending-machine/internal/middleware/auth"
	"github.com/grigorev-se/vending-machine/internal/models"
	"github.com/grigorev-se/vending-machine/internal/mykafka"
)

type UserHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type userView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Deposit  int    `json:"deposit"`
	Active   bool   `json:"active"`
}

func (h *UserHandler) view(c echo.Context, user *models.User) userView {
	var role models.Role
	if err := h.DB.First(&role, user.RoleID).Error; err != nil {
		c.Logger().Errorf("role lookup error for user %d: %v", user.ID, err)
	}
	return userView{
		ID:       user.ID,
		Username: user.Username,
		Role:     role.Name,
		Deposit:  user.Deposit,
		Active:   user.Active,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func (h *UserHandler) Register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		RoleName string `json:"role_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username required")
	}

	roleName := strings.ToUpper(req.RoleName)
	if roleName != models.RoleBuyer && roleName != models.RoleSeller {
		return echo.NewHTTPError(http.StatusBadRequest, "wrong role name, accepted BUYER or SELLER")
	}

	pw, err := hash.FromPlaintext(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var role models.Role
	if err := h.DB.Where("name = ?", roleName).First(&role).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "role lookup failed")
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pw.String(),
		RoleID:       role.ID,
		Active:       true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "user exist with this username")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
		"role":     roleName,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":  "user created",
		"user": h.view(c, &user),
	})
}

// loadOwn fetches the user addressed by the path and rejects callers
// acting on anyone but themselves.
func (h *UserHandler) loadOwn(c echo.Context) (*models.User, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	callerID, ok := authmw.UserID(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if user.ID != callerID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "user not authorized to perform this action")
	}
	return &user, nil
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.loadOwn(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": h.view(c, user)})
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	user, err := h.loadOwn(c)
	if err != nil {
		return err
	}

	var req struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
		Active   *bool   `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Password != nil {
		pw, err := hash.FromPlaintext(*req.Password)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user.PasswordHash = pw.String()
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := h.DB.Save(user).Error; err != nil {
		if isUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "user exist with this username")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":  "user updated",
		"user": h.view(c, user),
	})
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	user, err := h.loadOwn(c)
	if err != nil {
		return err
	}

	if err := h.DB.Delete(user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":   "user_deleted",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"msg": "user deleted"})
}
