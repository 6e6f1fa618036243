package auth

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"poshub-api/domain"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"
)

// Verifier validates incoming JWT bearer tokens and decodes their claims.
// It runs in one of two modes: shared-secret HS256 or JWKS-backed RS256.
type Verifier struct {
	JWKS     *keyfunc.JWKS
	Audience string
	Issuer   string
	Secret   []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewSharedSecretVerifier creates a Verifier for HS256 tokens signed with the
// given secret. The secret comes from configuration and is never logged.
func NewSharedSecretVerifier(secret []byte, issuer, audience string) *Verifier {
	if len(secret) == 0 {
		panic("shared secret must not be empty")
	}
	return &Verifier{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// NewJWKSVerifier creates a Verifier for RS256 tokens whose keys are served by
// the given JWKS endpoint.
func NewJWKSVerifier(jwks *keyfunc.JWKS, issuer, audience string) *Verifier {
	return &Verifier{
		JWKS:        jwks,
		Issuer:      issuer,
		Audience:    audience,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		keyCacheTTL: parseCacheTTL(),
	}
}

func parseCacheTTL() time.Duration {
	ttl := defaultJWKSCacheTTL
	if raw := os.Getenv(envJWKSCacheTTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			panic("invalid JWKS_CACHE_TTL")
		}
		ttl = parsed
	}
	return ttl
}

// ClaimsFromAuthHeader verifies the Authorization header value and returns the
// decoded claims.
func (v *Verifier) ClaimsFromAuthHeader(h string) (domain.Claims, error) {
	if h == "" {
		return domain.Claims{}, ErrMissingAuthorization
	}
	token, err := bearerTokenFromString(h)
	if err != nil {
		return domain.Claims{}, err
	}
	return v.ClaimsFromBearer(token)
}

// ClaimsFromBearer verifies a bearer token presented as raw bytes.
func (v *Verifier) ClaimsFromBearer(token []byte) (domain.Claims, error) {
	if len(token) == 0 {
		return domain.Claims{}, ErrBadAuthorization
	}

	tokenStr := readOnlyString(token)
	var parsedToken *jwt.Token
	var err error
	if v.Secret != nil {
		parsedToken, err = v.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return v.Secret, nil
		})
	} else {
		parsedToken, err = v.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return v.keyForToken(t)
		})
	}
	if err != nil {
		return domain.Claims{}, err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Claims{}, errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return domain.Claims{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return domain.Claims{}, errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return domain.Claims{}, errors.New("token used before issued")
	}
	if v.Audience != "" && !claims.VerifyAudience(v.Audience, false) {
		return domain.Claims{}, errors.New("invalid audience")
	}
	if v.Issuer != "" && !claims.VerifyIssuer(v.Issuer, false) {
		return domain.Claims{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return domain.Claims{}, errors.New("missing sub")
	}

	iss, _ := claims["iss"].(string)
	return domain.Claims{
		Subject: sub,
		Issuer:  iss,
		Scopes:  scopesFromClaims(claims),
	}, nil
}

// scopesFromClaims decodes the "scopes" claim. The canonical form is a JSON
// array of strings; older tokens carried a single space- or comma-separated
// string, which is still accepted. A missing claim yields no scopes.
func scopesFromClaims(claims jwt.MapClaims) []string {
	switch raw := claims["scopes"].(type) {
	case []any:
		scopes := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	case string:
		fields := strings.FieldsFunc(raw, func(r rune) bool {
			return r == ' ' || r == ','
		})
		scopes := make([]string, 0, len(fields))
		for _, s := range fields {
			if s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}

func (v *Verifier) keyForToken(token *jwt.Token) (any, error) {
	if v.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && v.keyCacheTTL > 0 {
		if cached, ok := v.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			v.keyCache.Delete(kid)
		}
	}

	key, err := v.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && v.keyCacheTTL > 0 {
		v.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(v.keyCacheTTL)})
	}
	return key, nil
}
