package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	maxResponseBytes = 1 << 20

	orderStatusCompleted = "COMPLETED"
	ipnVerified          = "VERIFIED"
	ipnInvalid           = "INVALID"
)

type Observer interface {
	GatewayRequest(operation string, err error, elapsed time.Duration)
}

// APIError is a non-2xx answer from the PayPal REST API.
type APIError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal api %d %s: %s (debug_id=%s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

type PayPalClient struct {
	cfg        config.PayPalConfig
	baseURL    string
	api        *http.Client
	plain      *http.Client
	tokens     *clientcredentials.Config
	breaker    *gobreaker.CircuitBreaker[[]byte]
	observer   Observer
	newBackOff func() backoff.BackOff
	logger     logrus.FieldLogger
}

func NewPayPalClient(cfg config.PayPalConfig, observer Observer) *PayPalClient {
	logger := factory.NewModuleLogger("paypal-client")
	plain := &http.Client{Timeout: cfg.RequestTimeout}
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")

	tokens := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	api := tokens.Client(context.WithValue(context.Background(), oauth2.HTTPClient, plain))
	api.Timeout = cfg.RequestTimeout

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithField("breaker", name).WithField("from", from.String()).WithField("to", to.String()).Warn("Circuit breaker state changed")
		},
	})

	return &PayPalClient{
		cfg:      cfg,
		baseURL:  baseURL,
		api:      api,
		plain:    plain,
		tokens:   tokens,
		breaker:  breaker,
		observer: observer,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger: logger,
	}
}

// AccessToken fetches a fresh client-credentials token. API calls reuse a
// cached token on their own; this is for credential checks.
func (c *PayPalClient) AccessToken(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(context.WithValue(ctx, oauth2.HTTPClient, c.plain))
	if err != nil {
		return "", fmt.Errorf("%w: %v", classify(err), err)
	}
	return token.AccessToken, nil
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      *money `json:"amount,omitempty"`
	Payments    *struct {
		Captures []struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			CustomID string `json:"custom_id"`
		} `json:"captures"`
	} `json:"payments,omitempty"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []link         `json:"links"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type subscriptionResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	PlanID   string `json:"plan_id"`
	CustomID string `json:"custom_id"`
	Links    []link `json:"links"`
}

func (c *PayPalClient) CreateOrder(ctx context.Context, req OrderRequest) (Result, error) {
	referenceID := req.ReferenceID
	if referenceID == "" {
		referenceID = uuid.NewString()
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []purchaseUnit{{
			ReferenceID: referenceID,
			Description: req.Description,
			CustomID:    req.CustomID,
			Amount: &money{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
	}

	var resp orderResponse
	if err := c.call(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", referenceID, body, &resp); err != nil {
		return Result{Type: ResultTypeFailure, Error: err.Error()}, err
	}

	return Result{
		Type:          ResultTypeRedirect,
		TransactionID: resp.ID,
		PaymentURL:    findLink(resp.Links, "approve", "payer-action"),
		Status:        resp.Status,
	}, nil
}

// CaptureOrder captures an approved order. The order id doubles as the
// idempotency key so a retried capture never charges twice.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (Result, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"

	var resp orderResponse
	if err := c.call(ctx, "capture_order", http.MethodPost, path, "capture-"+orderID, struct{}{}, &resp); err != nil {
		return Result{Type: ResultTypeFailure, Error: err.Error()}, err
	}

	if resp.Status != orderStatusCompleted {
		return Result{Type: ResultTypeFailure, Status: resp.Status, Error: "order not completed"}, nil
	}

	captureID := resp.ID
	if len(resp.PurchaseUnits) > 0 && resp.PurchaseUnits[0].Payments != nil && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		captureID = resp.PurchaseUnits[0].Payments.Captures[0].ID
	}
	return Result{Type: ResultTypeSuccess, TransactionID: captureID, Status: resp.Status}, nil
}

func (c *PayPalClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (Result, error) {
	body := map[string]interface{}{
		"plan_id":   req.PlanID,
		"custom_id": req.CustomID,
		"application_context": map[string]string{
			"user_action": "SUBSCRIBE_NOW",
			"return_url":  req.ReturnURL,
			"cancel_url":  req.CancelURL,
		},
	}

	var resp subscriptionResponse
	if err := c.call(ctx, "create_subscription", http.MethodPost, "/v1/billing/subscriptions", uuid.NewString(), body, &resp); err != nil {
		return Result{Type: ResultTypeFailure, Error: err.Error()}, err
	}

	return Result{
		Type:          ResultTypeRedirect,
		TransactionID: resp.ID,
		PaymentURL:    findLink(resp.Links, "approve"),
		Status:        resp.Status,
	}, nil
}

func (c *PayPalClient) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var resp subscriptionResponse
	path := "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.call(ctx, "get_subscription", http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return &Subscription{ID: resp.ID, Status: resp.Status, PlanID: resp.PlanID, CustomID: resp.CustomID}, nil
}

func (c *PayPalClient) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	path := "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID) + "/cancel"
	return c.call(ctx, "cancel_subscription", http.MethodPost, path, "", map[string]string{"reason": reason}, nil)
}

// VerifyNotification posts the IPN message back to PayPal with
// cmd=_notify-validate and reports whether PayPal answered VERIFIED.
func (c *PayPalClient) VerifyNotification(ctx context.Context, payload []byte) (bool, error) {
	body := append([]byte("cmd=_notify-validate&"), payload...)
	start := time.Now()

	var answer string
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.IPNVerifyURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", "ms-go-memberships-ipn")

		resp, err := c.plain.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &APIError{StatusCode: resp.StatusCode, Message: "ipn verification unavailable"}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Message: "ipn verification rejected"})
		}
		answer = strings.TrimSpace(string(data))
		return nil
	}, c.retryPolicy(ctx))
	c.observe("verify_notification", err, start)
	if err != nil {
		return false, fmt.Errorf("%w: %v", classify(err), err)
	}

	switch answer {
	case ipnVerified:
		return true, nil
	case ipnInvalid:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unexpected ipn answer %q", ErrGatewayFailure, answer)
	}
}

func (c *PayPalClient) call(ctx context.Context, operation, method, path, requestID string, in, out interface{}) error {
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = encoded
	}

	start := time.Now()
	var payload []byte
	err := backoff.Retry(func() error {
		data, err := c.breaker.Execute(func() ([]byte, error) {
			return c.send(ctx, method, path, requestID, body)
		})
		if err == nil {
			payload = data
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || !isTransient(err) {
			return backoff.Permanent(err)
		}
		c.logger.WithError(err).WithField("operation", operation).Debug("Retrying PayPal request")
		return err
	}, c.retryPolicy(ctx))
	c.observe(operation, err, start)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", classify(err), operation, err)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%w: %s: decode response: %v", ErrGatewayFailure, operation, err)
		}
	}
	return nil
}

func (c *PayPalClient) send(ctx context.Context, method, path, requestID string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{}
		_ = json.Unmarshal(data, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}
	return data, nil
}

func (c *PayPalClient) retryPolicy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
}

func (c *PayPalClient) observe(operation string, err error, start time.Time) {
	if c.observer != nil {
		c.observer.GatewayRequest(operation, err, time.Since(start))
	}
}

// isTransient reports whether err is worth retrying: network failures, 5xx and 429.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) && tokenErr.Response != nil {
		return tokenErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

func classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || isTransient(err) {
		return ErrGatewayFailure
	}
	return ErrGatewayRejected
}

func findLink(links []link, rels ...string) string {
	for _, rel := range rels {
		for _, l := range links {
			if l.Rel == rel {
				return l.Href
			}
		}
	}
	return ""
}
