package external

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wardalert/internal/types"
)

// assertionLifetime is fixed by the token endpoint's maximum.
const assertionLifetime = time.Hour

// assertionClaims is the claim set of the service-account grant. Subject
// equals issuer; the audience is the token endpoint.
type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTSigner signs service-account assertions with RS256.
//
// It holds no key material; the key is parsed from the credential on every
// call so a rotated secret takes effect on the next cold start without
// invalidating anything cached here.
type JWTSigner struct {
	now func() time.Time
}

// NewJWTSigner returns a signer that stamps assertions with the wall clock.
func NewJWTSigner() *JWTSigner {
	return &JWTSigner{now: time.Now}
}

// NewJWTSignerWithClock returns a signer with an injected clock.
func NewJWTSignerWithClock(now func() time.Time) *JWTSigner {
	return &JWTSigner{now: now}
}

// Sign returns the compact serialization header.claims.signature.
func (s *JWTSigner) Sign(cred *types.ServiceAccountCredential, scope string) (string, error) {
	if cred == nil || cred.ClientEmail == "" {
		return "", types.NewAppError(types.ErrCodeCredentialInvalid, "credential has no client email", nil)
	}

	key, err := parseSigningKey(cred.PrivateKey.Unmask())
	if err != nil {
		return "", err
	}

	audience := cred.TokenURI
	if audience == "" {
		audience = DefaultTokenURL
	}

	iat := s.now().Truncate(time.Second)
	claims := assertionClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cred.ClientEmail,
			Subject:   cred.ClientEmail,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(assertionLifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeSigningFailed, "failed to sign assertion", err)
	}
	return signed, nil
}

// parseSigningKey accepts PKCS#8 and PKCS#1 RSA keys. The PEM markers are
// checked up front so a garbled secret never yields a signature.
func parseSigningKey(pemKey string) (*rsa.PrivateKey, error) {
	pemKey = NormalizePrivateKey(pemKey)
	if !hasPEMMarkers(pemKey) {
		return nil, types.NewAppError(types.ErrCodeCredentialInvalid, "private key is missing PEM markers", nil)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		msg := "private key could not be decoded"
		if errors.Is(err, jwt.ErrNotRSAPrivateKey) {
			msg = "private key is not an RSA key"
		}
		return nil, types.NewAppError(types.ErrCodeCredentialInvalid, msg, err)
	}
	return key, nil
}

var _ AssertionSigner = (*JWTSigner)(nil)
