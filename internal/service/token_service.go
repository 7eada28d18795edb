package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigorev-se/vending-machine/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenInvalid  = errors.New("token invalid or revoked")
	ErrTokenNotFound = errors.New("token not found")
	ErrNoUserTokens  = errors.New("no tokens recorded for user")
)

// TokenService signs the access/refresh pair and keeps the durable
// registry of every issued token. A token it never recorded is treated as
// revoked.
type TokenService struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func (t *TokenService) sign(userID uint, role, typ string, exp time.Time, secret []byte) (string, string, error) {
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
		"typ":  typ,
		"jti":  jti,
		"exp":  exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// IssuePair signs a fresh access+refresh pair and records both in the
// registry before returning.
func (t *TokenService) IssuePair(userID uint, role string) (*TokenPair, error) {
	accessExp := time.Now().Add(accessTTL)
	access, accessJTI, err := t.sign(userID, role, TokenTypeAccess, accessExp, t.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExp := time.Now().Add(refreshTTL)
	refresh, refreshJTI, err := t.sign(userID, role, TokenTypeRefresh, refreshExp, t.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := t.Register(accessJTI, TokenTypeAccess, userID, accessExp, refreshJTI); err != nil {
		return nil, err
	}
	if err := t.Register(refreshJTI, TokenTypeRefresh, userID, refreshExp, accessJTI); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Register inserts a token record in the issued (not revoked) state.
// pairJTI names the other half of the session pair; empty for a token
// issued on its own.
func (t *TokenService) Register(jti, typ string, userID uint, exp time.Time, pairJTI string) error {
	record := models.Token{
		JTI:       jti,
		TokenType: typ,
		UserID:    userID,
		PairJTI:   pairJTI,
		ExpiresAt: exp.Unix(),
	}
	if err := t.DB.Create(&record).Error; err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	return nil
}

// IsValid fails closed: a jti with no matching record is reported as
// revoked, not as unknown.
func (t *TokenService) IsValid(jti string) (bool, error) {
	var record models.Token
	if err := t.DB.Where("jti = ?", jti).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return !record.Revoked, nil
}

// Revoke flips a single record owned by userID to revoked. Revoked is
// terminal; revoking twice is a no-op.
func (t *TokenService) Revoke(jti string, userID uint) error {
	result := t.DB.Model(&models.Token{}).
		Where("jti = ? AND user_id = ?", jti, userID).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// RevokeAll revokes every token ever issued to userID.
func (t *TokenService) RevokeAll(userID uint) error {
	var count int64
	if err := t.DB.Model(&models.Token{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNoUserTokens
	}
	return t.DB.Model(&models.Token{}).
		Where("user_id = ?", userID).
		Update("revoked", true).Error
}

// HasOtherActiveSession reports whether userID holds more than one live
// session. Every login issues an access+refresh pair, so anything beyond
// two live tokens means another session exists.
func (t *TokenService) HasOtherActiveSession(userID uint) (bool, error) {
	var count int64
	if err := t.DB.Model(&models.Token{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 2, nil
}

func parseClaims(raw string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	return claims, nil
}

// ParseAccess validates signature, expiry, token type and registry state
// of an access token.
func (t *TokenService) ParseAccess(raw string) (jwt.MapClaims, error) {
	return t.parseAndCheck(raw, t.JWTSecret, TokenTypeAccess)
}

// ParseRefresh does the same for a refresh token.
func (t *TokenService) ParseRefresh(raw string) (jwt.MapClaims, error) {
	return t.parseAndCheck(raw, t.RefreshSecret, TokenTypeRefresh)
}

func (t *TokenService) parseAndCheck(raw string, secret []byte, wantType string) (jwt.MapClaims, error) {
	claims, err := parseClaims(raw, secret)
	if err != nil {
		return nil, err
	}
	if typ, ok := claims["typ"].(string); !ok || typ != wantType {
		return nil, fmt.Errorf("not an %s token", wantType)
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return nil, errors.New("token missing jti")
	}
	valid, err := t.IsValid(jti)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Rotate exchanges a live refresh token for a fresh pair, revoking the
// old pair so neither half can be replayed.
func (t *TokenService) Rotate(rawRefresh string) (*TokenPair, error) {
	claims, err := t.ParseRefresh(rawRefresh)
	if err != nil {
		return nil, err
	}

	userID, ok := ClaimsUserID(claims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	role, _ := claims["role"].(string)
	jti, _ := claims["jti"].(string)

	var record models.Token
	if err := t.DB.Where("jti = ?", jti).First(&record).Error; err != nil {
		return nil, err
	}

	if err := t.Revoke(jti, userID); err != nil {
		return nil, err
	}
	if record.PairJTI != "" {
		if err := t.Revoke(record.PairJTI, userID); err != nil && !errors.Is(err, ErrTokenNotFound) {
			return nil, err
		}
	}

	return t.IssuePair(userID, role)
}

func ClaimsUserID(claims jwt.MapClaims) (uint, bool) {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, false
	}
	return uint(sub), true
}
