package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/revlyhq/revly-backend/utils"
)

// Link token error constants
var (
	ErrLinkTokenExpired = errors.New("review link has expired")
	ErrLinkTokenInvalid = errors.New("invalid review link")
)

// LinkTokenService issues and verifies the signed tokens embedded in
// review links. A click on the link is how a Sent request becomes Clicked.
type LinkTokenService interface {
	Issue(tenantID, customerID string) (string, error)
	Verify(token string) (*LinkTokenClaims, error)
	ReviewURL(token string) string
}

// LinkTokenClaims represents the claims carried by a review link token
type LinkTokenClaims struct {
	TenantID   string
	CustomerID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	TokenID    string
}

// LinkTokenServiceImpl implements LinkTokenService with HS256 JWTs
type LinkTokenServiceImpl struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
	domain    string
}

// NewLinkTokenService creates a new link token service
func NewLinkTokenService(secretKey string, ttl time.Duration, issuer, domain string) (LinkTokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	return &LinkTokenServiceImpl{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		issuer:    issuer,
		domain:    domain,
	}, nil
}

// Issue signs a token binding a review link to one customer of one tenant
func (s *LinkTokenServiceImpl) Issue(tenantID, customerID string) (string, error) {
	now := utils.UTCNow()

	claims := jwt.MapClaims{
		"tenant_id":   tenantID,
		"customer_id": customerID,
		"jti":         uuid.New().String(),
		"iat":         now.Unix(),
		"exp":         now.Add(s.ttl).Unix(),
		"iss":         s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign link token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a review link token
func (s *LinkTokenServiceImpl) Verify(tokenString string) (*LinkTokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrLinkTokenExpired
		}
		return nil, ErrLinkTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrLinkTokenInvalid
	}

	tenantID, _ := claims["tenant_id"].(string)
	customerID, _ := claims["customer_id"].(string)
	tokenID, _ := claims["jti"].(string)
	if tenantID == "" || customerID == "" {
		return nil, ErrLinkTokenInvalid
	}

	out := &LinkTokenClaims{
		TenantID:   tenantID,
		CustomerID: customerID,
		TokenID:    tokenID,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// ReviewURL renders the public URL a recipient taps
func (s *LinkTokenServiceImpl) ReviewURL(token string) string {
	return fmt.Sprintf("https://%s/r/%s", s.domain, token)
}
