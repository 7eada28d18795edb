package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grigorev-se/vending-machine/internal/handlers"
	authmw "github.com/grigorev-se/vending-machine/internal/middleware/auth"
	"github.com/grigorev-se/vending-machine/internal/models"
)

type Deps struct {
	Guard          *authmw.Guard
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	BuyerHandler   *handlers.BuyerHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	v1.POST("/auth/login", d.AuthHandler.Login)
	v1.POST("/auth/refresh", d.AuthHandler.Refresh)
	v1.POST("/users", d.UserHandler.Register)

	v1.GET("/products", d.ProductHandler.GetProducts)
	v1.GET("/products/search", d.ProductHandler.SearchProducts)
	v1.GET("/products/:id", d.ProductHandler.GetProduct)

	private := v1.Group("", d.Guard.RequireAuth)

	private.POST("/auth/logout", d.AuthHandler.Logout)
	private.POST("/auth/logout/all", d.AuthHandler.LogoutAll)

	private.GET("/users/:id", d.UserHandler.GetUser)
	private.PUT("/users/:id", d.UserHandler.UpdateUser)
	private.DELETE("/users/:id", d.UserHandler.DeleteUser)

	seller := private.Group("", d.Guard.RequireRole(models.RoleSeller))
	seller.POST("/products", d.ProductHandler.CreateProduct)
	seller.PUT("/products/:id", d.ProductHandler.UpdateProduct)
	seller.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	buyer := private.Group("", d.Guard.RequireRole(models.RoleBuyer))
	buyer.POST("/deposit", d.BuyerHandler.Deposit)
	buyer.GET("/reset", d.BuyerHandler.Reset)
	buyer.POST("/buy", d.BuyerHandler.Buy)
}
