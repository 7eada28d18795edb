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

var (
	ErrBadDenomination = errors.New("deposit must be 5, 10, 20, 50 or 100")
	ErrUserNotFound    = errors.New("user not found")
)

// WalletService mutates a buyer's deposit balance. Only single coins from
// the accepted denomination set ever enter the balance, so the balance is
// always expressible as a coin combination.
type WalletService struct {
	DB *gorm.DB
}

// Deposit adds one coin to the buyer's balance and returns the new total.
func (s *WalletService) Deposit(ctx context.Context, userID uint, amount int) (int, error) {
	l := logging.FromContext(ctx).With("svc", "wallet.deposit", "user_id", userID)

	if !coins.IsDenomination(amount) {
		return 0, ErrBadDenomination
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load user: %w", err)
	}

	user.Deposit += amount
	if err := s.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return 0, fmt.Errorf("save deposit: %w", err)
	}

	l.Info("deposit_added", "amount", amount, "balance", user.Deposit)
	return user.Deposit, nil
}

// Reset zeroes the buyer's balance and returns the coin breakdown handed
// back to the buyer. The balance is zeroed even if the breakdown could
// not represent it exactly.
func (s *WalletService) Reset(ctx context.Context, userID uint) (map[int]int, error) {
	l := logging.FromContext(ctx).With("svc", "wallet.reset", "user_id", userID)

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	balance := user.Deposit
	user.Deposit = 0
	if err := s.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("reset deposit: %w", err)
	}

	l.Info("deposit_reset", "returned", balance)
	return coins.MakeChange(balance), nil
}
