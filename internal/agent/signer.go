package agent

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Request authentication headers.
const (
	HeaderAuthorization = "Authorization"
	HeaderKey           = "X-Sitekeeper-Key"
)

// Verification failures returned by VerifyRequest.
var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrUnknownKey       = errors.New("unknown connector key")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrRequestMismatch  = errors.New("signed claims do not match request")
	ErrTokenExpired     = errors.New("request token expired")
)

// RequestClaims bind a token to one request.
type RequestClaims struct {
	Method   string `json:"mth"`
	Path     string `json:"pth"`
	BodyHash string `json:"bsh"`
}

// Sign produces the compact HS256 JWS for a request. The output depends only on
// key, secret, method, canonical path, body, and issuedAt, so identical inputs
// yield identical tokens.
func Sign(key, secret, method, canonicalPath string, body []byte, issuedAt time.Time, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: signingKey(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	issued := issuedAt.UTC().Truncate(time.Second)
	std := jwt.Claims{
		Issuer:   key,
		IssuedAt: jwt.NewNumericDate(issued),
		Expiry:   jwt.NewNumericDate(issued.Add(ttl)),
	}
	custom := RequestClaims{
		Method:   strings.ToUpper(method),
		Path:     canonicalPath,
		BodyHash: BodyHash(body),
	}
	token, err := jwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return token, nil
}

// BodyHash is the base64url SHA-256 digest of body. An empty body hashes the
// empty string.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// CanonicalPath joins a logical path and its query with keys sorted.
func CanonicalPath(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// signingKey stretches the shared secret to the 256-bit HMAC key HS256 expects.
func signingKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// VerifyRequest checks a signed request the way a connector does: it looks up
// the secret for the presented key, verifies the HS256 signature and expiry,
// and recomputes method, path (relative to prefix), and body hash. The body
// is restored so handlers can read it again. It returns the verified key.
func VerifyRequest(r *http.Request, prefix string, lookup func(key string) (string, bool), now time.Time, leeway time.Duration) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	key := strings.TrimSpace(r.Header.Get(HeaderKey))
	secret, found := lookup(key)
	if key == "" || !found {
		return "", ErrUnknownKey
	}

	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var (
		std    jwt.Claims
		custom RequestClaims
	)
	if err := parsed.Claims(signingKey(secret), &std, &custom); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: key, Time: now}, leeway); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)
	if path == "" {
		path = "/"
	}
	expected := RequestClaims{
		Method:   strings.ToUpper(r.Method),
		Path:     CanonicalPath(path, r.URL.Query()),
		BodyHash: BodyHash(body),
	}
	if subtle.ConstantTimeCompare([]byte(expected.Method), []byte(custom.Method)) != 1 ||
		expected.Path != custom.Path ||
		subtle.ConstantTimeCompare([]byte(expected.BodyHash), []byte(custom.BodyHash)) != 1 {
		return "", ErrRequestMismatch
	}
	return key, nil
}
