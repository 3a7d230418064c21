package walkthrough

import (
	"github.com/google/uuid"

	"github.com/mycyclecoach/walkthrough/pkg/config"
)

// Session carries the values that flow from one step to the next.
// It is mutated once, after a successful login.
type Session struct {
	BaseURL  string
	Email    string
	Password string
	RunID    string

	AccessToken string
	TokenType   string
	ExpiresIn   int64

	// PlanID is captured from plan generation for reuse by later callers.
	PlanID string
}

// NewSession creates a session for one run against cfg.
func NewSession(cfg *config.WalkthroughConfig) *Session {
	return &Session{
		BaseURL:  cfg.BaseURL,
		Email:    cfg.Email,
		Password: cfg.Password,
		RunID:    uuid.NewString(),
	}
}

// Authenticated reports whether login produced a token.
func (s *Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Authorization returns the Authorization header value for protected calls.
func (s *Session) Authorization() string {
	scheme := s.TokenType
	if scheme == "" {
		scheme = "Bearer"
	}
	return scheme + " " + s.AccessToken
}

// credentials is the register and login request body.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Session) credentials() credentials {
	return credentials{Email: s.Email, Password: s.Password}
}
