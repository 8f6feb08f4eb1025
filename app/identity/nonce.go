package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidNonce = errors.New("invalid or expired nonce")

const (
	ActionPayPalCheckout = "paypal_checkout"
	ActionRecurring      = "paypal_recurring"
	ActionBankTransfer   = "bank_transfer"
	ActionFreeCheckout   = "free_checkout"
	ActionCancel         = "cancel_membership"
)

type nonceClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// Nonces are short-lived tokens bound to one subscriber and one action, the
// CSRF guard for state-changing checkout calls.
type Nonces struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewNonces(secret string, ttl time.Duration) *Nonces {
	return &Nonces{secret: []byte("nonce:" + secret), ttl: ttl, now: time.Now}
}

func (n *Nonces) Issue(subscriberID, action string) (string, time.Time, error) {
	now := n.now()
	expiresAt := now.Add(n.ttl)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, nonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subscriberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString(n.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (n *Nonces) Verify(subscriberID, action, nonce string) error {
	claims := &nonceClaims{}
	parsed, err := jwt.ParseWithClaims(nonce, claims, func(t *jwt.Token) (interface{}, error) {
		return n.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(n.now))
	if err != nil || !parsed.Valid {
		return ErrInvalidNonce
	}
	if claims.Subject != subscriberID || claims.Action != action {
		return ErrInvalidNonce
	}
	return nil
}
