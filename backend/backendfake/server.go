package backendfake

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/tramcan-session/tenants"
	tenantrepofakes "github.com/jrsteele09/tramcan-session/tenants/repofakes"
	"github.com/jrsteele09/tramcan-session/token"
	"github.com/jrsteele09/tramcan-session/users"
	fakeuserrepo "github.com/jrsteele09/tramcan-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultSecret = "tramcan-dev-secret"

// Server is an in-process implementation of the tramcan backend contract.
// It serves local development and the client's tests.
type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	logger zerolog.Logger

	secret   string
	tokenTTL time.Duration
	nowFunc  func() time.Time
	minter   *token.Minter

	tenants      tenants.Repo
	users        users.UserRepo
	stationUsers users.StationUserRepo

	lock      sync.Mutex
	selection map[string]int64 // session token jti to selected station
	inactive  map[int64]bool
	hits      map[string]int
	failNext  map[string]int
	holds     map[string]chan struct{}
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEnv enables coloured route logging when env is "DEV".
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithRepos(tenantRepo tenants.Repo, userRepo users.UserRepo, stationUserRepo users.StationUserRepo) Option {
	return func(s *Server) {
		s.tenants = tenantRepo
		s.users = userRepo
		s.stationUsers = stationUserRepo
	}
}

func New(options ...Option) *Server {
	userRepo := fakeuserrepo.NewFakeUserRepo()
	s := &Server{
		mux:          http.NewServeMux(),
		logger:       log.Logger,
		secret:       DefaultSecret,
		nowFunc:      time.Now,
		tenants:      tenantrepofakes.NewFakeTenantRepo(),
		users:        userRepo,
		stationUsers: userRepo,
		selection:    make(map[string]int64),
		inactive:     make(map[int64]bool),
		hits:         make(map[string]int),
		failNext:     make(map[string]int),
		holds:        make(map[string]chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "backendfake").Logger()

	minterOptions := []token.MinterOption{token.WithIssuer("tramcan-fake"), token.WithNowFunc(s.nowFunc)}
	if s.tokenTTL > 0 {
		minterOptions = append(minterOptions, token.WithDefaultTTL(s.tokenTTL))
	}
	s.minter = token.NewMinter(token.NewHMACSigner(s.secret), minterOptions...)

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests served on any route.
func (s *Server) TotalHits() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// FailNext makes the next request to path answer with status.
func (s *Server) FailNext(path string, status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failNext[path] = status
}

// Hold parks requests to path until the returned release func is called.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.lock.Lock()
	s.holds[path] = ch
	s.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			delete(s.holds, path)
			s.lock.Unlock()
			close(ch)
		})
	}
}

// DeactivateStation hides the station from listings and refuses to
// select it.
func (s *Server) DeactivateStation(stationID int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.inactive[stationID] = true
}

// Revoke invalidates a token the server issued.
func (s *Server) Revoke(rawToken string) error {
	return s.minter.Revoke(rawToken)
}

func (s *Server) isActive(stationID int64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return !s.inactive[stationID]
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1], 0)
		} else {
			s.logRoute("", parts[0], 0)
		}
	}
}

func (s *Server) logRoute(method, path string, status int) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	line := fmt.Sprintf("[%-19s] %s", color+paddedMethod+ResetColor, path)
	if status != 0 {
		line += " " + statusColor(status) + fmt.Sprint(status) + ResetColor
	}
	s.logger.Info().Msg(line)
}
