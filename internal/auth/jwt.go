package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenUseAccess marks a short-lived token accepted by the auth guard.
	TokenUseAccess = "access"

	// TokenUseRefresh marks a long-lived token accepted only by the refresh
	// and logout endpoints. Presenting a refresh token to a guarded route
	// fails validation.
	TokenUseRefresh = "refresh"

	// rsaKeyBits is the RSA key size used for JWT signing.
	// 2048 bits is the minimum recommended.
	rsaKeyBits = 2048
)

// Claims holds the custom JWT claims embedded in every token.
// Standard claims (exp, iat, iss, jti) are included via jwt.RegisteredClaims.
type Claims struct {
	jwt.RegisteredClaims

	// TokenUse distinguishes access tokens from refresh tokens so one can
	// never be substituted for the other.
	TokenUse string `json:"token_use"`

	// Login is the GitHub login of the admin at token issuance time.
	Login string `json:"login"`
}

// JWTManager handles RS256 signing and verification of session tokens.
// It holds the RSA key pair in memory after initialization.
type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTManagerFromFiles loads an RSA key pair from PEM files on disk.
// privateKeyPath must point to a PKCS#8 or PKCS#1 PEM-encoded private key.
// publicKeyPath must point to the corresponding PEM-encoded public key.
//
// Use this in production where keys are mounted as secrets (Docker, Kubernetes),
// so sessions survive server restarts.
func NewJWTManagerFromFiles(privateKeyPath, publicKeyPath, issuer string, accessTTL, refreshTTL time.Duration) (*JWTManager, error) {
	privBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: reading private key file: %w", err)
	}

	pubBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: reading public key file: %w", err)
	}

	return newJWTManagerFromPEM(privBytes, pubBytes, issuer, accessTTL, refreshTTL)
}

// NewJWTManagerGenerated creates a JWTManager with a freshly generated RSA
// key pair. The keys are ephemeral, so every existing session is invalidated
// on server restart.
//
// Suitable for development and single-instance deployments where forced
// re-login on restart is acceptable.
func NewJWTManagerGenerated(issuer string, accessTTL, refreshTTL time.Duration) (*JWTManager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("auth: generating RSA key pair: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// newJWTManagerFromPEM parses PEM-encoded RSA key bytes and returns a JWTManager.
func newJWTManagerFromPEM(privatePEM, publicPEM []byte, issuer string, accessTTL, refreshTTL time.Duration) (*JWTManager, error) {
	privBlock, _ := pem.Decode(privatePEM)
	if privBlock == nil {
		return nil, errors.New("auth: failed to decode private key PEM block")
	}

	// Support both PKCS#1 (RSA PRIVATE KEY) and PKCS#8 (PRIVATE KEY) formats.
	var privateKey *rsa.PrivateKey
	switch privBlock.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(privBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing PKCS#1 private key: %w", err)
		}
		privateKey = key
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing PKCS#8 private key: %w", err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("auth: PKCS#8 key is not an RSA key")
		}
		privateKey = rsaKey
	default:
		return nil, fmt.Errorf("auth: unsupported private key PEM type: %s", privBlock.Type)
	}

	pubBlock, _ := pem.Decode(publicPEM)
	if pubBlock == nil {
		return nil, errors.New("auth: failed to decode public key PEM block")
	}

	pubInterface, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing public key: %w", err)
	}

	publicKey, ok := pubInterface.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("auth: public key is not an RSA key")
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// GenerateAccessToken creates a signed RS256 access token for the admin.
func (m *JWTManager) GenerateAccessToken(subject, login string) (string, *Claims, error) {
	return m.generate(subject, login, TokenUseAccess, m.accessTTL)
}

// GenerateRefreshToken creates a signed RS256 refresh token for the admin.
// The returned Claims expose the JTI and expiry, which rotation and logout
// need for blacklisting.
func (m *JWTManager) GenerateRefreshToken(subject, login string) (string, *Claims, error) {
	return m.generate(subject, login, TokenUseRefresh, m.refreshTTL)
}

func (m *JWTManager) generate(subject, login, tokenUse string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// JTI identifies this token instance. Refresh rotation blacklists
			// the old JTI, and logout the presented one.
			ID: uuid.NewString(),
		},
		TokenUse: tokenUse,
		Login:    login,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", nil, fmt.Errorf("auth: signing %s token: %w", tokenUse, err)
	}

	return signed, &claims, nil
}

// ValidateToken parses and verifies a JWT string and checks that its
// token_use claim matches expectedUse. Returns the embedded Claims on
// success, or a sentinel error on failure.
//
// Callers should use errors.Is(err, auth.ErrTokenExpired) to distinguish
// expired tokens from tampered/malformed ones.
func (m *JWTManager) ValidateToken(tokenString, expectedUse string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			// Reject tokens signed with anything other than RS256.
			// This prevents the "alg:none" and HMAC confusion attacks.
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
			}
			return m.publicKey, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	// An access token presented where a refresh token is expected (or the
	// other way round) is invalid, not merely misplaced.
	if claims.TokenUse != expectedUse {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *JWTManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *JWTManager) RefreshTTL() time.Duration { return m.refreshTTL }

// PublicKeyPEM returns the public key in PEM-encoded PKIX format.
// Useful for sharing the verification key with other services.
func (m *JWTManager) PublicKeyPEM() ([]byte, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(m.publicKey)
	if err != nil {
		return nil, fmt.Errorf("auth: marshaling public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	}), nil
}
