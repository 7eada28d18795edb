package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/es"
	authmw "github.com/grigorev-se/vending-machine/internal/middleware/auth"
	"github.com/grigorev-se/vending-machine/internal/models"
	"github.com/grigorev-se/vending-machine/internal/mykafka"
	"github.com/grigorev-se/vending-machine/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func validateCost(cost int) error {
	if cost <= 0 || cost%5 != 0 {
		return errors.New("cost must be a positive multiple of 5")
	}
	return nil
}

func (h *ProductHandler) syncIndex(c echo.Context, product *models.Product) {
	if h.ES == nil {
		return
	}
	if err := es.IndexProduct(c.Request().Context(), h.ES, h.Index, product); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"product": product})
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Product
	if err := h.DB.Model(&models.Product{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	sellerID, ok := authmw.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req struct {
		ProductName     string `json:"product_name"`
		Cost            int    `json:"cost"`
		AmountAvailable int    `json:"amount_available"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product_name required")
	}
	if err := validateCost(req.Cost); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AmountAvailable <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "amount_available must be positive")
	}

	product := models.Product{
		ProductName:     req.ProductName,
		Cost:            req.Cost,
		AmountAvailable: req.AmountAvailable,
		SellerID:        sellerID,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		if isUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "product exist with this name")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.syncIndex(c, &product)
	publish(c, h.Producer, "product_events", fmt.Sprint(product.ID), map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.ProductName,
		"sellerID":  sellerID,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"msg":     "Product created",
		"product": product,
	})
}

// loadOwned fetches the addressed product and rejects sellers that do
// not own it.
func (h *ProductHandler) loadOwned(c echo.Context) (*models.Product, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sellerID, ok := authmw.UserID(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if product.SellerID != sellerID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not authorized to perform this action")
	}
	return &product, nil
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductName     *string `json:"product_name"`
		Cost            *int    `json:"cost"`
		AmountAvailable *int    `json:"amount_available"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.ProductName != nil {
		product.ProductName = *req.ProductName
	}
	if req.Cost != nil {
		if err := validateCost(*req.Cost); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		product.Cost = *req.Cost
	}
	if req.AmountAvailable != nil {
		if *req.AmountAvailable < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "amount_available cannot be negative")
		}
		product.AmountAvailable = *req.AmountAvailable
	}

	if err := h.DB.Save(product).Error; err != nil {
		if isUniqueViolation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "product exist with this name")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.syncIndex(c, product)
	publish(c, h.Producer, "product_events", fmt.Sprint(product.ID), map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.ProductName,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"msg":     "Product updated",
		"product": product,
	})
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	if err := h.DB.Delete(product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.ES != nil {
		if err := es.DeleteProduct(c.Request().Context(), h.ES, h.Index, product.ID); err != nil {
			c.Logger().Errorf("ES delete error: %v", err)
		}
	}
	publish(c, h.Producer, "product_events", fmt.Sprint(product.ID), map[string]any{
		"type":      "product_deleted",
		"productID": product.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"msg": "Product deleted"})
}

func (h *ProductHandler) SearchProducts(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q required")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, products, err := es.SearchProducts(c.Request().Context(), h.ES, h.Index, q, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}
