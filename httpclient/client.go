package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	HeaderRequestID = "X-Request-ID"
	DefaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

// Scope selects which bearer token a request carries.
type Scope int

const (
	ScopePublic      Scope = iota // no token
	ScopeGeneric                  // auth_token
	ScopeSession                  // session_token
	ScopeStationUser              // station user token, falling back to session_token
)

func (s Scope) String() string {
	switch s {
	case ScopePublic:
		return "public"
	case ScopeGeneric:
		return "generic"
	case ScopeSession:
		return "session"
	case ScopeStationUser:
		return "station_user"
	default:
		return "unknown"
	}
}

// Tokens are read on every attempt, never cached by the client.
type Tokens struct {
	Generic     oauth2.TokenSource
	Session     oauth2.TokenSource
	StationUser oauth2.TokenSource
}

func (t Tokens) source(scope Scope) oauth2.TokenSource {
	switch scope {
	case ScopeGeneric:
		return t.Generic
	case ScopeSession:
		return t.Session
	case ScopeStationUser:
		return t.StationUser
	default:
		return nil
	}
}

// Unauthorized describes a request the backend answered with 401.
type Unauthorized struct {
	Scope     Scope
	RequestID string
	Token     string // the bearer the request was sent with, "" for public calls
}

// UnauthorizedHandler is notified of every 401. Returning true asks for the
// call to be re-sent; the client honours that at most once per call and only
// when the scope now yields a different token.
type UnauthorizedHandler func(ctx context.Context, u Unauthorized) (resend bool)

// Call is one logical request.
type Call struct {
	Scope  Scope
	Method string
	Path   string
	Body   any
	// Token overrides the scope's token source. Calls with an explicit token
	// are never re-sent.
	Token string
}

// Response is a non-401 reply. Any status other than 401 is returned here;
// interpreting it is up to the caller.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
	Attempts   int
}

type Client struct {
	baseURL   string
	http      *http.Client
	tokens    Tokens
	userAgent string
	logger    zerolog.Logger

	handlerLock    sync.RWMutex
	onUnauthorized UnauthorizedHandler
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the hard per-attempt ceiling.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTransport replaces the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) {
		c.onUnauthorized = h
	}
}

func New(baseURL string, tokens Tokens, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[httpclient New] base URL is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "http_client").Logger()
	return c, nil
}

// SetUnauthorizedHandler installs the 401 callback. The controller is
// usually built after the client, so the handler is swapped in later.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.handlerLock.Lock()
	defer c.handlerLock.Unlock()
	c.onUnauthorized = h
}

func (c *Client) unauthorizedHandler() UnauthorizedHandler {
	c.handlerLock.RLock()
	defer c.handlerLock.RUnlock()
	return c.onUnauthorized
}

// Do sends call, re-sending at most once after a 401. Errors:
// ErrNoToken when a protected scope has no token (nothing is sent),
// ErrUnauthorized for a 401 that is not re-sent, ErrUnreachable for
// transport failures and timeouts, and the context's error when ctx is
// canceled.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	var payload []byte
	if call.Body != nil {
		var err error
		if payload, err = json.Marshal(call.Body); err != nil {
			return nil, errors.Wrap(err, "[Do] marshal request body")
		}
	}

	for attempt := 1; ; attempt++ {
		token, err := c.token(call)
		if err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, call, payload, token)
		if err != nil {
			return nil, err
		}
		resp.Attempts = attempt
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}

		c.logger.Warn().Str("scope", call.Scope.String()).Str("path", call.Path).
			Str("request_id", resp.RequestID).Int("attempt", attempt).Msg("unauthorized")

		resend := false
		if h := c.unauthorizedHandler(); h != nil {
			resend = h(ctx, Unauthorized{Scope: call.Scope, RequestID: resp.RequestID, Token: token})
		}
		if !resend || attempt > 1 || call.Token != "" {
			return nil, errors.Wrapf(interrors.ErrUnauthorized, "%s %s", call.Method, call.Path)
		}
		next, err := c.token(call)
		if err != nil || next == token {
			return nil, errors.Wrapf(interrors.ErrUnauthorized, "%s %s", call.Method, call.Path)
		}
	}
}

func (c *Client) token(call Call) (string, error) {
	if call.Token != "" {
		return call.Token, nil
	}
	if call.Scope == ScopePublic {
		return "", nil
	}
	src := c.tokens.source(call.Scope)
	if src == nil {
		return "", errors.Wrapf(interrors.ErrNoToken, "no token source for scope %s", call.Scope)
	}
	tok, err := src.Token()
	if err != nil {
		return "", errors.Wrapf(interrors.ErrNoToken, "scope %s: %v", call.Scope, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", errors.Wrapf(interrors.ErrNoToken, "scope %s", call.Scope)
	}
	return tok.AccessToken, nil
}

func (c *Client) send(ctx context.Context, call Call, payload []byte, token string) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, c.baseURL+call.Path, body)
	if err != nil {
		return nil, errors.Wrap(err, "[send] create request")
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, errors.Wrapf(ctxErr, "%s %s", call.Method, call.Path)
		}
		c.logger.Warn().Err(err).Str("path", call.Path).Dur("elapsed", time.Since(start)).Msg("request failed")
		return nil, errors.Wrapf(interrors.ErrUnreachable, "%s %s: %v", call.Method, call.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrapf(interrors.ErrUnreachable, "%s %s: read body: %v", call.Method, call.Path, err)
	}

	c.logger.Debug().Str("method", call.Method).Str("path", call.Path).
		Str("scope", call.Scope.String()).Int("status", resp.StatusCode).
		Str("request_id", requestID).Dur("elapsed", time.Since(start)).Msg("request")

	return &Response{StatusCode: resp.StatusCode, Body: raw, RequestID: requestID}, nil
}
