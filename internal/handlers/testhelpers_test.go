package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/hash"
	authmw "github.com/grigorev-se/vending-machine/internal/middleware/auth"
	"github.com/grigorev-se/vending-machine/internal/models"
	"github.com/grigorev-se/vending-machine/internal/service"
)

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	Guard  *authmw.Guard
	Tokens *service.TokenService
	Auth   *AuthHandler
	Users  *UserHandler
	Prods  *ProductHandler
	Buyer  *BuyerHandler
}

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

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := initTestDB(t)
	tokens := &service.TokenService{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}

	return &testEnv{
		E:      echo.New(),
		DB:     db,
		Guard:  &authmw.Guard{DB: db, Tokens: tokens},
		Tokens: tokens,
		Auth:   &AuthHandler{DB: db, Tokens: tokens},
		Users:  &UserHandler{DB: db},
		Prods:  &ProductHandler{DB: db, Index: "products"},
		Buyer: &BuyerHandler{
			Wallet:    &service.WalletService{DB: db},
			Purchases: &service.PurchaseService{DB: db},
		},
	}
}

func (env *testEnv) doJSON(t *testing.T, method, target string, payload any) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// createUser inserts a user with the given role name and returns it.
func (env *testEnv) createUser(t *testing.T, username, roleName string, deposit int) *models.User {
	t.Helper()

	var role models.Role
	if err := env.DB.Where("name = ?", roleName).First(&role).Error; err != nil {
		t.Fatalf("role %s not seeded: %v", roleName, err)
	}

	pw, err := hash.FromPlaintext("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		Username:     username,
		PasswordHash: pw.String(),
		RoleID:       role.ID,
		Deposit:      deposit,
		Active:       true,
	}
	if err := env.DB.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

// asUser mimics what the auth middleware sets after validating a token.
func asUser(c echo.Context, user *models.User, role string) {
	c.Set("userID", user.ID)
	c.Set("role", role)
}

func httpError(t *testing.T, err error) *echo.HTTPError {
	t.Helper()

	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he
}
