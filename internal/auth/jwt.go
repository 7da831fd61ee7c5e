package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hrledger/internal/ledger"
)

// Claims represents the identity provider's JWT payload.
type Claims struct {
	Role       ledger.Role `json:"role"`
	CompanyID  int64       `json:"company_id"`
	EmployeeID int64       `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// Scope converts verified claims into the caller scope used by the ledger.
func (c Claims) Scope() ledger.Scope {
	return ledger.Scope{
		UserID:     c.Subject,
		Role:       c.Role,
		CompanyID:  c.CompanyID,
		EmployeeID: c.EmployeeID,
	}
}

// Token is a signed access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Issue signs an HS256 access token for scope. Only tests and the dev token helper issue
// tokens; production tokens come from the identity provider.
func Issue(scope ledger.Scope, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)

	claims := Claims{
		Role:       scope.Role,
		CompanyID:  scope.CompanyID,
		EmployeeID: scope.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   scope.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	switch claims.Role {
	case ledger.RoleAdmin, ledger.RoleManager, ledger.RoleEmployee:
	default:
		return Claims{}, errors.New("unknown role")
	}
	if claims.CompanyID <= 0 {
		return Claims{}, errors.New("missing company")
	}
	return *claims, nil
}
