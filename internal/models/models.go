package models

const (
	RoleAdmin  = "ADMIN"
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
)

type Role struct {
	ID   uint   `gorm:"primaryKey"      json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	RoleID       uint   `gorm:"index;not null"           json:"-"`
	Deposit      int    `gorm:"not null;default:0"       json:"deposit"`
	Active       bool   `gorm:"not null;default:true"    json:"active"`
}

type Product struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductName     string `gorm:"unique;not null"          json:"product_name"`
	Cost            int    `gorm:"not null"                 json:"cost"`
	AmountAvailable int    `gorm:"not null;default:0"       json:"amount_available"`
	SellerID        uint   `gorm:"index;not null"           json:"seller_id"`
}

// Token is the durable registry record for every issued JWT. Rows are
// flipped to revoked on logout, never deleted. PairJTI links the access
// and refresh halves of one session so they can be revoked together.
type Token struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	JTI       string `gorm:"uniqueIndex;not null" json:"jti"`
	TokenType string `gorm:"not null"             json:"token_type"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	PairJTI   string `gorm:"index"                json:"pair_jti"`
	ExpiresAt int64  `gorm:"not null"             json:"expires_at"`
	Revoked   bool   `gorm:"default:false"        json:"revoked"`
}
