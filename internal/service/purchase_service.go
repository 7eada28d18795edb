package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/coins"
	"github.com/grigorev-se/vending-machine/internal/logging"
	"github.com/grigorev-se/vending-machine/internal/models"
)

var ErrInsufficientFunds = errors.New("deposit not sufficient for this product(s)")

// ProductNotFoundError names the offending line item of a purchase batch.
type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d does not exist", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	_, ok := target.(*ProductNotFoundError)
	return ok
}

// InsufficientStockError names a line item asking for more units than the
// product has available.
type InsufficientStockError struct {
	ProductID uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d not available in this quantity", e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool {
	_, ok := target.(*InsufficientStockError)
	return ok
}

type PurchaseLine struct {
	ProductID   uint `json:"id"`
	AmountToBuy int  `json:"amount_to_buy"`
}

type PurchaseResult struct {
	TotalSpent int
	Products   []string
	Change     map[int]int
}

// PurchaseService executes a buyer's purchase batch. The whole batch is
// validated against stock and balance before any row is touched, then
// stock decrements, the balance update and the change payout commit as
// one transaction. A failed batch leaves the database untouched.
type PurchaseService struct {
	DB *gorm.DB
}

func (s *PurchaseService) Buy(ctx context.Context, buyerID uint, lines []PurchaseLine) (*PurchaseResult, error) {
	l := logging.FromContext(ctx).With("svc", "purchase.buy", "user_id", buyerID)

	if len(lines) == 0 {
		return nil, errors.New("empty purchase")
	}
	for _, line := range lines {
		if line.AmountToBuy <= 0 {
			return nil, fmt.Errorf("amount_to_buy must be positive for product %d", line.ProductID)
		}
	}

	var result PurchaseResult
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var buyer models.User
		if err := tx.First(&buyer, buyerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		// Stage the batch: every line is checked before any mutation.
		// Lines naming the same product share one staged copy, so repeated
		// lines draw down the same stock counter.
		totalSpent := 0
		staged := make(map[uint]*models.Product, len(lines))
		products := make([]*models.Product, 0, len(lines))
		names := make([]string, 0, len(lines))
		for _, line := range lines {
			product, ok := staged[line.ProductID]
			if !ok {
				var loaded models.Product
				if err := tx.First(&loaded, line.ProductID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return &ProductNotFoundError{ProductID: line.ProductID}
					}
					return err
				}
				product = &loaded
				staged[line.ProductID] = product
				products = append(products, product)
			}
			if product.AmountAvailable < line.AmountToBuy {
				return &InsufficientStockError{ProductID: line.ProductID}
			}
			totalSpent += line.AmountToBuy * product.Cost
			product.AmountAvailable -= line.AmountToBuy
			names = append(names, product.ProductName)
		}

		if buyer.Deposit < totalSpent {
			return ErrInsufficientFunds
		}

		remaining := buyer.Deposit - totalSpent
		change := coins.MakeChange(remaining)

		// The remaining balance goes back to the buyer as coins, so the
		// committed deposit drops to whatever the breakdown could not
		// represent (zero for any balance built from valid deposits).
		buyer.Deposit = remaining - coins.Total(change)

		for _, product := range products {
			if err := tx.Save(product).Error; err != nil {
				return err
			}
		}
		if err := tx.Save(&buyer).Error; err != nil {
			return err
		}

		result = PurchaseResult{
			TotalSpent: totalSpent,
			Products:   names,
			Change:     change,
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	l.Info("order_created", "total_spent", result.TotalSpent, "items", len(result.Products))
	return &result, nil
}
