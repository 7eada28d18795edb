package service

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.Role{}, &models.User{}, &models.Product{}, &models.Token{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	roles := []models.Role{
		{ID: 1, Name: models.RoleAdmin},
		{ID: 2, Name: models.RoleBuyer},
		{ID: 3, Name: models.RoleSeller},
	}
	if err := db.Create(&roles).Error; err != nil {
		t.Fatalf("failed to seed roles: %v", err)
	}

	return db
}

func createBuyer(t *testing.T, db *gorm.DB, username string, deposit int) *models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		PasswordHash: "x",
		RoleID:       2,
		Deposit:      deposit,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create buyer: %v", err)
	}
	return &user
}

func createProduct(t *testing.T, db *gorm.DB, name string, cost, amount int, sellerID uint) *models.Product {
	t.Helper()

	product := models.Product{
		ProductName:     name,
		Cost:            cost,
		AmountAvailable: amount,
		SellerID:        sellerID,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return &product
}
