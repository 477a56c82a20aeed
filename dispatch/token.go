package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

// ActionRunQueue is the only action the endpoint accepts.
const ActionRunQueue = "bgqueue_run_queue"

const minSecretLength = 32

type Claims struct {
	Action    string `json:"act"`
	Queue     string `json:"queue"`
	LockToken string `json:"lock,omitempty"`
	jwt.RegisteredClaims
}

// TokenSigner issues and checks the short lived tokens that authenticate
// dispatch requests.
type TokenSigner struct {
	key  []byte
	ttl  time.Duration
	now  func() time.Time
	skew time.Duration
	used *usedTokens
}

func NewTokenSigner(secret string, ttl time.Duration) (*TokenSigner, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("dispatch secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	used, err := newUsedTokens()
	if err != nil {
		return nil, fmt.Errorf("create used token cache: %w", err)
	}
	return &TokenSigner{
		key:  []byte(secret),
		ttl:  ttl,
		now:  time.Now,
		skew: 5 * time.Second,
		used: used,
	}, nil
}

func (s *TokenSigner) Sign(queue, lockToken string) (string, error) {
	now := s.now()
	claims := Claims{
		Action:    ActionRunQueue,
		Queue:     queue,
		LockToken: lockToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign dispatch token: %w", err)
	}
	return signed, nil
}

func (s *TokenSigner) Verify(raw string) (Claims, error) {
	claims := Claims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.skew),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, errors.Join(contracts.ErrInvalidToken, err)
	}
	if claims.Action != ActionRunQueue {
		return Claims{}, contracts.ErrUnknownAction
	}
	if claims.Queue == "" {
		return Claims{}, contracts.ErrInvalidToken
	}
	return claims, nil
}

// Consume marks verified claims as spent. It reports false when the same
// token was consumed before, so each token starts at most one invocation.
func (s *TokenSigner) Consume(claims Claims) bool {
	if claims.ExpiresAt == nil {
		return false
	}
	return s.used.consume(claims.ID, claims.ExpiresAt.Sub(s.now())+s.skew)
}
