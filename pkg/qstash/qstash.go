package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "Upstash-Signature"
	issuer          = "Upstash"
)

var (
	ErrMissingSignature = errors.New("qstash signature is missing")
	ErrInvalidSignature = errors.New("qstash signature is invalid")
)

// Config is read with the QSTASH_ prefix. URL is the public address of the
// webhook; when set, the signed subject must match it.
type Config struct {
	URL               string        `split_words:"true"`
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true"`
	ClockTolerance    time.Duration `split_words:"true" default:"30s"`
}

type Claims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks QStash webhook deliveries. A signature made with either
// the current or the next signing key is accepted so keys can be rotated.
type Verifier struct {
	url       string
	keys      [][]byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(cfg Config) (*Verifier, error) {
	current := strings.TrimSpace(cfg.CurrentSigningKey)
	if current == "" {
		return nil, errors.New("qstash current signing key is required")
	}

	keys := [][]byte{[]byte(current)}
	if next := strings.TrimSpace(cfg.NextSigningKey); next != "" {
		keys = append(keys, []byte(next))
	}

	return &Verifier{
		url:       strings.TrimSpace(cfg.URL),
		keys:      keys,
		tolerance: cfg.ClockTolerance,
		now:       time.Now,
	}, nil
}

func MustNew(cfg Config) *Verifier {
	v, err := NewVerifier(cfg)
	if err != nil {
		panic(err)
	}
	return v
}

// Verify checks signature against body. It returns the claims of the first
// key that validates.
func (v *Verifier) Verify(signature string, body []byte) (*Claims, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, ErrMissingSignature
	}

	var lastErr error
	for _, key := range v.keys {
		claims, err := v.verifyWithKey(signature, body, key)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(signature string, body []byte, key []byte) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(v.tolerance),
		jwt.WithTimeFunc(v.now),
	}
	if v.url != "" {
		opts = append(opts, jwt.WithSubject(v.url))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(signature, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	if strings.TrimRight(claims.Body, "=") != BodyHash(body) {
		return nil, errors.New("body hash does not match")
	}
	return claims, nil
}

// BodyHash is the unpadded base64url SHA-256 of body, as carried in the
// signature's body claim.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign produces a signature the way QStash does.
func Sign(key, url string, body []byte, now time.Time) (string, error) {
	claims := &Claims{
		Body: BodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}
