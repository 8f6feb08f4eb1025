package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-memberships/app/types"
)

const subscriberContextKey = "subscriber"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type Subscriber struct {
	ID    string
	Email string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 bearer tokens issued by the site's auth layer.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

func (a *Authenticator) Parse(token string) (*Subscriber, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, ErrInvalidToken
	}
	return &Subscriber{ID: subject, Email: strings.TrimSpace(claims.Email)}, nil
}

func (a *Authenticator) Issue(subscriberID, email string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subscriberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// RequireSubscriber rejects requests without a valid bearer token and stores
// the subscriber on the echo context.
func (a *Authenticator) RequireSubscriber() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "authentication required"})
			}

			subscriber, err := a.Parse(strings.TrimSpace(token))
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "authentication required"})
			}

			ctx.Set(subscriberContextKey, subscriber)
			return next(ctx)
		}
	}
}

func SubscriberFromContext(ctx echo.Context) (*Subscriber, bool) {
	subscriber, ok := ctx.Get(subscriberContextKey).(*Subscriber)
	return subscriber, ok && subscriber != nil
}

func WithSubscriber(ctx echo.Context, subscriber *Subscriber) {
	ctx.Set(subscriberContextKey, subscriber)
}
