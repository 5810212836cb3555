package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const operatorIssuer = "smart-stay"

var (
	ErrNoSecret         = errors.New("no signing secret configured")
	ErrNonValidToken    = errors.New("token did not pass validation")
	ErrInvalidClaimType = errors.New("invalid claim type")
	ErrInvalidTTL       = errors.New("invalid token TTL")
)

var tokenSignatureAlg = jwtlib.SigningMethodHS256

// OperatorClaim authorizes an operator to call the guarded API routes.
type OperatorClaim struct {
	Scope string `json:"scope,omitempty"`
	jwtlib.RegisteredClaims
}

// NewOperatorClaim builds a claim for subject valid for ttl.
func NewOperatorClaim(subject string, ttl time.Duration, now time.Time) (OperatorClaim, error) {
	if ttl <= 0 {
		return OperatorClaim{}, ErrInvalidTTL
	}
	return OperatorClaim{
		Scope: "power",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    operatorIssuer,
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(now.UTC()),
			ExpiresAt: jwtlib.NewNumericDate(now.UTC().Add(ttl)),
		},
	}, nil
}

// NewOperatorToken signs an operator token with secret.
func NewOperatorToken(secret string, subject string, ttl time.Duration) (string, error) {
	claim, err := NewOperatorClaim(subject, ttl, time.Now())
	if err != nil {
		return "", err
	}
	return GenerateJWT(secret, claim)
}

func DecodeOperatorToken(secret string, tokenString string) (*OperatorClaim, error) {
	return decodeJWT(secret, tokenString, &OperatorClaim{})
}

// GenerateJWT signs claims with HS256.
func GenerateJWT(secret string, claims jwtlib.Claims) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	token := jwtlib.NewWithClaims(tokenSignatureAlg, claims)
	return token.SignedString([]byte(secret))
}

func decodeJWT[T jwtlib.Claims](secret string, tokenString string, claimsType T) (T, error) {
	var zero T
	if secret == "" {
		return zero, ErrNoSecret
	}

	parsedToken, err := jwtlib.ParseWithClaims(tokenString, claimsType, func(token *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{tokenSignatureAlg.Alg()}), jwtlib.WithIssuer(operatorIssuer))

	if err != nil {
		return zero, err
	} else if parsedToken == nil || !parsedToken.Valid {
		return zero, ErrNonValidToken
	} else if claims, ok := parsedToken.Claims.(T); ok {
		return claims, nil
	}

	return zero, ErrInvalidClaimType
}
