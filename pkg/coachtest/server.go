// Package coachtest runs an in-process stand-in for the MyCycleCoach API so
// the walkthrough can be exercised end to end in tests. Responses follow the
// real service: 201 on register, 400 for duplicates and bad credentials,
// 403 for unverified accounts, 404 when no profile or plan exists.
package coachtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mycyclecoach/walkthrough/pkg/auth"
)

// Override replaces the response of one path.
type Override struct {
	Status      int
	Body        string
	ContentType string
	Delay       time.Duration
}

// RecordedRequest is what the server saw for one call.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
	RequestID     string
	UserAgent     string
}

type options struct {
	requireVerification bool
	tokenTTL            time.Duration
	overrides           map[string]Override
}

// Option configures a Server.
type Option func(*options)

// WithEmailVerification makes newly registered accounts unverified, so
// login answers 403 until VerifyEmail is called.
func WithEmailVerification() Option {
	return func(o *options) {
		o.requireVerification = true
	}
}

// WithTokenTTL sets the access token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.tokenTTL = ttl
	}
}

// WithOverride serves o for every request to path.
func WithOverride(path string, o Override) Option {
	return func(opts *options) {
		opts.overrides[path] = o
	}
}

// Server is a running fixture API.
type Server struct {
	URL string

	store  *Store
	issuer *auth.Issuer
	opts   options
	http   *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewServer starts a fixture API on a loopback port.
func NewServer(opts ...Option) (*Server, error) {
	o := options{
		tokenTTL:  15 * time.Minute,
		overrides: make(map[string]Override),
	}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := NewStore()
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer("", o.tokenTTL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	s := &Server{
		store:  store,
		issuer: issuer,
		opts:   o,
	}

	s.http = httptest.NewServer(s.router())
	s.URL = s.http.URL
	return s, nil
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(recordMiddleware(s))
	r.Use(overrideMiddleware(s))

	r.GET("/actuator/health", s.health)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", s.register)
			authGroup.POST("/login", s.login)
		}

		protected := api.Group("")
		protected.Use(authMiddleware(s.issuer))
		{
			protected.GET("/user/profile", s.profile)
			protected.POST("/training/plan/generate", s.generatePlan)
			protected.GET("/training/plan/current", s.currentPlan)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "No handler found for "+c.Request.Method+" "+c.Request.URL.Path)
	})

	return r
}

// Close shuts the server down and drops its data.
func (s *Server) Close() {
	s.http.Close()
	s.store.Close()
}

// Store exposes the backing store for seeding.
func (s *Server) Store() *Store {
	return s.store
}

// VerifyEmail marks an account verified.
func (s *Server) VerifyEmail(email string) error {
	return s.store.VerifyEmail(email)
}

// Requests returns a copy of every request seen so far, in order.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Paths returns the paths of every request seen so far, in order.
func (s *Server) Paths() []string {
	reqs := s.Requests()
	paths := make([]string, len(reqs))
	for i, r := range reqs {
		paths[i] = r.Path
	}
	return paths
}

func (s *Server) record(r RecordedRequest) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
}

func (s *Server) override(path string) (Override, bool) {
	o, ok := s.opts.overrides[path]
	return o, ok
}
