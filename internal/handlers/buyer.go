package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/grigorev-se/vending-machine/internal/middleware/auth"
	"github.com/grigorev-se/vending-machine/internal/mykafka"
	"github.com/grigorev-se/vending-machine/internal/service"
)

// BuyerHandler serves the coin-operated side of the machine: deposits,
// balance reset and purchases.
type BuyerHandler struct {
	Wallet    *service.WalletService
	Purchases *service.PurchaseService
	Producer  *mykafka.Producer
}

func (h *BuyerHandler) Deposit(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req struct {
		Deposit int `json:"deposit"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	balance, err := h.Wallet.Deposit(c.Request().Context(), userID, req.Deposit)
	if err != nil {
		if errors.Is(err, service.ErrBadDenomination) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, service.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":             "Deposit added",
		"current_deposit": balance,
	})
}

func (h *BuyerHandler) Reset(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	change, err := h.Wallet.Reset(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":              "Deposit reset",
		"change_to_return": change,
	})
}

func (h *BuyerHandler) Buy(c echo.Context) error {
	userID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var lines []service.PurchaseLine
	if err := c.Bind(&lines); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	result, err := h.Purchases.Buy(c.Request().Context(), userID, lines)
	if err != nil {
		switch {
		case errors.Is(err, &service.ProductNotFoundError{}):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, &service.InsufficientStockError{}):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInsufficientFunds):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	publish(c, h.Producer, "purchase_events", fmt.Sprint(userID), map[string]any{
		"type":        "order_created",
		"userID":      userID,
		"total_spent": result.TotalSpent,
		"products":    result.Products,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":              "Order created",
		"products":         result.Products,
		"total_spent":      result.TotalSpent,
		"change_to_return": result.Change,
	})
}
