package app

import (
	"context"
	"net/http"

	"github.com/jrsteele09/tramcan-session/auth"
	"github.com/jrsteele09/tramcan-session/backend"
	"github.com/jrsteele09/tramcan-session/httpclient"
	"github.com/jrsteele09/tramcan-session/internal/config"
	"github.com/jrsteele09/tramcan-session/kvstore"
	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// App is the assembled session core: store, HTTP client, backend contract
// and controller, wired so the client reads tokens from the store and
// reports 401s to the controller.
type App struct {
	KV         kvstore.Store
	Sessions   *sessions.Store
	HTTP       *httpclient.Client
	API        *backend.Client
	Controller *auth.Controller

	ownsKV bool
}

type options struct {
	logger     zerolog.Logger
	kv         kvstore.Store
	transport  http.RoundTripper
	controller []auth.ControllerOption
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithKVStore uses kv instead of opening the configured store. The caller
// keeps ownership of kv.
func WithKVStore(kv kvstore.Store) Option {
	return func(o *options) {
		o.kv = kv
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func WithControllerOptions(opts ...auth.ControllerOption) Option {
	return func(o *options) {
		o.controller = append(o.controller, opts...)
	}
}

// New builds the App and restores the persisted session.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{KV: o.kv}
	if a.KV == nil {
		kv, err := kvstore.Open(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "[app.New] open store")
		}
		a.KV = kv
		a.ownsKV = true
	}

	store, err := sessions.NewStore(a.KV, sessions.WithLogger(o.logger))
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.Sessions = store

	httpOptions := []httpclient.Option{
		httpclient.WithLogger(o.logger),
		httpclient.WithTimeout(cfg.GetRequestTimeout()),
		httpclient.WithUserAgent(cfg.GetUserAgent()),
	}
	if o.transport != nil {
		httpOptions = append(httpOptions, httpclient.WithTransport(o.transport))
	}
	a.HTTP, err = httpclient.New(cfg.GetBaseURL(), httpclient.Tokens{
		Generic:     store.AuthTokenSource(),
		Session:     store.SessionTokenSource(),
		StationUser: store.StationUserTokenSource(),
	}, httpOptions...)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.API = backend.New(a.HTTP)

	controllerOptions := append([]auth.ControllerOption{auth.WithLogger(o.logger)}, o.controller...)
	a.Controller, err = auth.NewController(store, a.API, controllerOptions...)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.HTTP.SetUnauthorizedHandler(a.Controller.HandleUnauthorized)

	a.Controller.Restore(ctx)
	return a, nil
}

func (a *App) closeOnError(err error) error {
	_ = a.Close()
	return errors.Wrap(err, "[app.New]")
}

// Close releases the store if New opened it.
func (a *App) Close() error {
	if !a.ownsKV || a.KV == nil {
		return nil
	}
	return kvstore.Close(a.KV)
}
