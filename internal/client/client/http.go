package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/expertease/internal/logging"
	"github.com/google/uuid"
)

const (
	authorizationHeader = "Authorization"
	requestIDHeader     = "X-Request-ID"
	bearerPrefix        = "Bearer "
	maxBodyBytes        = 1 << 20
)

// TokenSource returns the bearer token to attach to outgoing requests, or ""
// when there is none.
type TokenSource func(ctx context.Context) string

type Option func(*HTTPClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.hc = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// HTTPClient talks JSON to the marketplace backend.
//
// Every request passes through sign, which adds "Authorization: Bearer <t>"
// from the TokenSource when no explicit token was supplied. When such a
// signed request comes back 401, every OnUnauthorized listener is called,
// no matter which call site issued the request. Credential endpoints are
// exempt from the signal. Every failure, signed or
// not, is also reported to OnError listeners.
type HTTPClient struct {
	baseURL      string
	hc           *http.Client
	tokens       TokenSource
	logger       logging.Logger
	newRequestID func() string

	mu           sync.RWMutex
	nextID       int
	unauthorized map[int]func(context.Context)
	failures     map[int]func(context.Context, *APIError)
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		hc:           &http.Client{Timeout: timeout},
		logger:       logging.Nop{},
		newRequestID: uuid.NewString,
		unauthorized: make(map[int]func(context.Context)),
		failures:     make(map[int]func(context.Context, *APIError)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized registers fn for the unauthorized signal. The returned
// func unregisters it.
func (c *HTTPClient) OnUnauthorized(fn func(ctx context.Context)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.unauthorized[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.unauthorized, id)
		c.mu.Unlock()
	}
}

// OnError registers fn for every failed request.
func (c *HTTPClient) OnError(fn func(ctx context.Context, err *APIError)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.failures[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.failures, id)
		c.mu.Unlock()
	}
}

// The credential endpoints answer 401 for bad credentials, which says
// nothing about the stored token, so they are sent as public calls.

func (c *HTTPClient) Signup(ctx context.Context, req SignupRequest) error {
	return c.send(ctx, call{method: http.MethodPost, path: "/signup", in: req, public: true})
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, email, code string) error {
	in := verifyOTPRequest{Email: email, OTP: code}
	return c.send(ctx, call{method: http.MethodPost, path: "/verify-otp", in: in, public: true})
}

func (c *HTTPClient) ResendOTP(ctx context.Context, email string) error {
	return c.send(ctx, call{method: http.MethodPost, path: "/resend-otp", in: emailRequest{Email: email}, public: true})
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	in := loginRequest{Username: username, Password: password}
	err := c.send(ctx, call{method: http.MethodPost, path: "/login", in: in, out: &out, public: true})
	return out, err
}

// UserInfo fetches the profile. A request carrying an explicit token is not
// signed from the token source, so its 401 never raises the unauthorized
// signal; the caller decides what a rejected token means.
func (c *HTTPClient) UserInfo(ctx context.Context, token string) (UserProfile, error) {
	var out UserProfile
	err := c.send(ctx, call{method: http.MethodGet, path: "/user/info", out: &out, bearer: token})
	return out, err
}

func (c *HTTPClient) WorkerLogin(ctx context.Context, email string) (WorkerLoginResult, error) {
	var out WorkerLoginResult
	err := c.send(ctx, call{method: http.MethodPost, path: "/worker/login", in: emailRequest{Email: email}, out: &out, public: true})
	return out, err
}

// WorkerSignup registers a worker. Healthcare workers go through the
// dedicated endpoint, which takes the clinical fields.
func (c *HTTPClient) WorkerSignup(ctx context.Context, req WorkerSignupRequest) (WorkerSignupResult, error) {
	path := "/worker/signup"
	if req.Service == "" || req.Service == ServiceHealthcare {
		path = "/worker/healthcare/signup"
	}
	var out WorkerSignupResult
	err := c.send(ctx, call{method: http.MethodPost, path: path, in: req, out: &out, public: true})
	return out, err
}

// Ping requests the public service catalogue.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.Do(ctx, http.MethodGet, "/services", nil, nil)
}

// Do issues an arbitrary JSON request signed from the token source. It is
// the entry point for every other backend collaborator (appointments,
// availability, ...), so they share the interceptor and the signals.
func (c *HTTPClient) Do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, call{method: method, path: path, in: in, out: out})
}

type call struct {
	method string
	path   string
	in     any
	out    any
	bearer string
	public bool
}

func (c *HTTPClient) send(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", cl.method, cl.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", cl.method, cl.path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := c.newRequestID()
	req.Header.Set(requestIDHeader, reqID)
	signed := c.sign(ctx, req, cl.bearer)

	log := c.logger.With("method", cl.method, "path", cl.path, "request_id", reqID)

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Warn(ctx, "request failed", "error", err)
		apiErr := &APIError{Kind: ErrUnavailable, Message: MessageNetwork, Err: err}
		c.reportFailure(ctx, apiErr)
		return apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		apiErr := &APIError{Kind: ErrUnavailable, Status: resp.StatusCode, Message: MessageNetwork, Err: err}
		c.reportFailure(ctx, apiErr)
		return apiErr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: serverMessage(data),
		}
		log.Debug(ctx, "request rejected", "status", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized && signed && !cl.public {
			c.broadcastUnauthorized(ctx)
		}
		c.reportFailure(ctx, apiErr)
		return apiErr
	}

	if cl.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, cl.out); err != nil {
			apiErr := &APIError{Kind: ErrUnexpected, Status: resp.StatusCode, Message: MessageUnexpected, Err: err}
			c.reportFailure(ctx, apiErr)
			return apiErr
		}
	}
	return nil
}

// sign attaches the bearer token. It reports whether the token came from
// the token source, which is what makes a 401 a session-wide signal.
func (c *HTTPClient) sign(ctx context.Context, req *http.Request, explicit string) bool {
	if explicit != "" {
		req.Header.Set(authorizationHeader, bearerPrefix+explicit)
		return false
	}
	if c.tokens == nil {
		return false
	}
	token := c.tokens(ctx)
	if token == "" {
		return false
	}
	req.Header.Set(authorizationHeader, bearerPrefix+token)
	return true
}

func (c *HTTPClient) broadcastUnauthorized(ctx context.Context) {
	c.mu.RLock()
	fns := make([]func(context.Context), 0, len(c.unauthorized))
	for _, fn := range c.unauthorized {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

func (c *HTTPClient) reportFailure(ctx context.Context, apiErr *APIError) {
	c.mu.RLock()
	fns := make([]func(context.Context, *APIError), 0, len(c.failures))
	for _, fn := range c.failures {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, apiErr)
	}
}

func serverMessage(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return MessageUnexpected
	}
	switch {
	case eb.Error != "":
		return eb.Error
	case eb.Msg != "":
		return eb.Msg
	default:
		return MessageUnexpected
	}
}

// IsNetwork reports whether err means the backend was never reached.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
