package walkthrough

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycyclecoach/walkthrough/pkg/auth"
	"github.com/mycyclecoach/walkthrough/pkg/coachtest"
	"github.com/mycyclecoach/walkthrough/pkg/config"
)

var allPaths = []string{
	PathHealth,
	PathRegister,
	PathLogin,
	PathProfile,
	PathGeneratePlan,
	PathCurrentPlan,
}

func newFixture(t *testing.T, opts ...coachtest.Option) *coachtest.Server {
	t.Helper()
	s, err := coachtest.NewServer(opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func testConfig(baseURL string) *config.WalkthroughConfig {
	cfg := config.Default().Walkthrough
	cfg.BaseURL = baseURL
	return &cfg
}

func run(t *testing.T, cfg *config.WalkthroughConfig, opts ...Option) (*Walkthrough, *Report, string, error) {
	t.Helper()
	var out bytes.Buffer
	w := New(cfg, &out, opts...)
	report, err := w.Run(context.Background())
	return w, report, out.String(), err
}

func TestRunHappyPath(t *testing.T) {
	s := newFixture(t)

	w, report, out, err := run(t, testConfig(s.URL))
	require.NoError(t, err)

	assert.Equal(t, allPaths, s.Paths())
	assert.False(t, report.LoginFailed)
	assert.Len(t, report.Steps, 6)

	// No profile exists for a fresh account, which is reported but not fatal.
	assert.Equal(t, 5, report.Count(OutcomeOK))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	assert.Equal(t, http.StatusNotFound, report.Steps[3].StatusCode)

	session := w.Session()
	assert.True(t, session.Authenticated())
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, int64(900), session.ExpiresIn)
	assert.NotEmpty(t, session.PlanID)

	assert.Contains(t, out, "MyCycleCoach API Test Suite")
	assert.Contains(t, out, "1. Testing Health Endpoint...")
	assert.Contains(t, out, `Response: {"components":`)
	assert.Contains(t, out, "2. Testing User Registration...")
	assert.Contains(t, out, "Result: User registered successfully!")
	assert.Contains(t, out, "Access Token: "+auth.MaskToken(session.AccessToken, 30))
	assert.Contains(t, out, "Token Type: Bearer")
	assert.Contains(t, out, "Expires In: 900 seconds")
	assert.Contains(t, out, "4. Testing Get Profile (Protected Endpoint)...")
	assert.Contains(t, out, "Plan ID: "+session.PlanID)
	assert.Contains(t, out, "Goal: Marathon")
	assert.Contains(t, out, "Status: ACTIVE")
	assert.Contains(t, out, "6. Testing Get Current Plan...")
	assert.Contains(t, out, `"goal": "Marathon"`)
	assert.Contains(t, out, "✓ All tests passed successfully!")
	assert.Contains(t, out, "Summary: 5 ok, 1 failed, 0 skipped")
	assert.NotContains(t, out, "\x1b[")
}

func TestRunSendsSessionHeaders(t *testing.T) {
	s := newFixture(t)

	w, _, _, err := run(t, testConfig(s.URL))
	require.NoError(t, err)

	session := w.Session()
	reqs := s.Requests()
	require.Len(t, reqs, 6)

	for i, r := range reqs {
		assert.Equal(t, session.RunID, r.RequestID, r.Path)
		assert.Equal(t, config.DefaultUserAgent, r.UserAgent, r.Path)
		if i >= 3 {
			assert.Equal(t, "Bearer "+session.AccessToken, r.Authorization, r.Path)
			assert.Equal(t, "application/json", r.ContentType, r.Path)
		} else {
			assert.Empty(t, r.Authorization, r.Path)
		}
	}

	assert.Empty(t, reqs[0].ContentType)
	assert.Equal(t, "application/json", reqs[1].ContentType)
	assert.Equal(t, "application/json", reqs[2].ContentType)
	assert.Equal(t, http.MethodPost, reqs[4].Method)
	assert.Equal(t, "Marathon", reqs[4].Query.Get("goal"))
}

func TestRunWithExistingProfile(t *testing.T) {
	s := newFixture(t)
	cfg := testConfig(s.URL)

	// First run creates the account.
	_, _, _, err := run(t, cfg)
	require.NoError(t, err)

	user, err := s.Store().GetUserByEmail(cfg.Email)
	require.NoError(t, err)
	require.NoError(t, s.Store().UpsertProfile(&coachtest.Profile{
		UserID:          user.ID,
		ExperienceLevel: sql.NullString{String: "ADVANCED", Valid: true},
	}))

	_, report, out, err := run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, report.Steps[3].Outcome)
	assert.Contains(t, out, `"experienceLevel":"ADVANCED"`)
}

func TestRunRegisterTwiceIsNotFatal(t *testing.T) {
	s := newFixture(t)
	cfg := testConfig(s.URL)

	_, first, _, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, first.Steps[1].StatusCode)

	_, second, out, err := run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, second.Steps[1].StatusCode)
	assert.Equal(t, OutcomeFailed, second.Steps[1].Outcome)
	assert.Contains(t, out, "already exists")
	assert.NotContains(t, out, "User registered successfully!")
	assert.True(t, second.Ran(6))
	assert.Contains(t, out, "✓ All tests passed successfully!")
}

func TestRunLoginRejectedSkipsProtectedSteps(t *testing.T) {
	s := newFixture(t, coachtest.WithEmailVerification())

	w, report, out, err := run(t, testConfig(s.URL))
	require.NoError(t, err)

	assert.Equal(t, []string{PathHealth, PathRegister, PathLogin}, s.Paths())
	assert.True(t, report.LoginFailed)
	assert.Equal(t, http.StatusForbidden, report.LoginStatus)
	for n := 4; n <= 6; n++ {
		assert.False(t, report.Ran(n), "step %d", n)
	}
	assert.Equal(t, 3, report.Count(OutcomeSkipped))
	assert.False(t, w.Session().Authenticated())

	assert.Contains(t, out, "Error: 403")
	assert.Contains(t, out, "Email not verified")
	assert.NotContains(t, out, "4. Testing")
	assert.NotContains(t, out, "All tests passed")
}

func TestRunLoginRejectedFailOnLoginError(t *testing.T) {
	s := newFixture(t, coachtest.WithEmailVerification())
	cfg := testConfig(s.URL)
	cfg.FailOnLoginError = true

	_, report, _, err := run(t, cfg)
	require.Error(t, err)

	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, http.StatusForbidden, loginErr.StatusCode)
	assert.False(t, IsConnectivity(err))
	assert.False(t, report.Ran(4))
	assert.Len(t, s.Paths(), 3)
}

func TestRunLoginAfterVerification(t *testing.T) {
	s := newFixture(t, coachtest.WithEmailVerification())
	cfg := testConfig(s.URL)

	_, first, _, err := run(t, cfg)
	require.NoError(t, err)
	require.True(t, first.LoginFailed)

	require.NoError(t, s.VerifyEmail(cfg.Email))

	_, second, _, err := run(t, cfg)
	require.NoError(t, err)
	assert.False(t, second.LoginFailed)
	assert.True(t, second.Ran(6))
}

func TestRunLoginResponseMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "no access token",
			body:    `{"tokenType":"Bearer","expiresIn":900}`,
			message: "accessToken",
		},
		{
			name:    "empty access token",
			body:    `{"accessToken":"","tokenType":"Bearer","expiresIn":900}`,
			message: "accessToken",
		},
		{
			name:    "no token type",
			body:    `{"accessToken":"abc","expiresIn":900}`,
			message: "tokenType",
		},
		{
			name:    "no expiry",
			body:    `{"accessToken":"abc","tokenType":"Bearer"}`,
			message: "expiresIn",
		},
		{
			name:    "fractional expiry",
			body:    `{"accessToken":"abc","tokenType":"Bearer","expiresIn":1.5}`,
			message: "expiresIn",
		},
		{
			name:    "not an object",
			body:    `["abc"]`,
			message: "JSON object",
		},
		{
			name:    "not json",
			body:    `<html>oops</html>`,
			message: "not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixture(t, coachtest.WithOverride(PathLogin, coachtest.Override{Body: tt.body}))

			w, _, _, err := run(t, testConfig(s.URL))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
			assert.False(t, IsConnectivity(err))

			// No authenticated step may run without a usable token.
			assert.Equal(t, []string{PathHealth, PathRegister, PathLogin}, s.Paths())
			assert.Empty(t, w.Session().AccessToken)
		})
	}
}

func TestRunOpaqueTokenRejectedByService(t *testing.T) {
	s := newFixture(t, coachtest.WithOverride(PathLogin, coachtest.Override{
		Body: `{"accessToken":"opaque-token-that-is-not-a-jwt","tokenType":"Bearer","expiresIn":60}`,
	}))

	_, report, out, err := run(t, testConfig(s.URL))
	require.NoError(t, err)

	assert.Equal(t, allPaths, s.Paths())
	for _, step := range report.Steps[3:] {
		assert.Equal(t, http.StatusUnauthorized, step.StatusCode, step.Name)
		assert.Equal(t, OutcomeFailed, step.Outcome, step.Name)
	}
	assert.Contains(t, out, "Access Token: opaque-token-that-is-not-a-jwt...")
	assert.Contains(t, out, "Plan ID: null")
	assert.Contains(t, out, "Goal: null")
	assert.NotContains(t, out, "Subject:")
}

func TestRunTokenTypeDrivesAuthorization(t *testing.T) {
	s := newFixture(t)

	w, _, _, err := run(t, testConfig(s.URL))
	require.NoError(t, err)
	token := w.Session().AccessToken

	other := newFixture(t, coachtest.WithOverride(PathLogin, coachtest.Override{
		Body: `{"accessToken":"` + token + `","tokenType":"","expiresIn":60}`,
	}))

	_, _, _, err = run(t, testConfig(other.URL))
	require.NoError(t, err)

	reqs := other.Requests()
	require.Len(t, reqs, 6)
	assert.Equal(t, "Bearer "+token, reqs[3].Authorization)
}

func TestRunPrintsTokenClaims(t *testing.T) {
	s := newFixture(t)

	_, _, out, err := run(t, testConfig(s.URL))
	require.NoError(t, err)

	assert.Contains(t, out, "Subject: 1")
	assert.Contains(t, out, "Expires At: ")
}

func TestRunHealthNotOKContinues(t *testing.T) {
	s := newFixture(t, coachtest.WithOverride(PathHealth, coachtest.Override{
		Status: http.StatusServiceUnavailable,
		Body:   `{"status":"DOWN"}`,
	}))

	_, report, out, err := run(t, testConfig(s.URL))
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, report.Steps[0].Outcome)
	assert.Equal(t, http.StatusServiceUnavailable, report.Steps[0].StatusCode)
	assert.Contains(t, out, `Response: {"status":"DOWN"}`)
	assert.True(t, report.Ran(6))
}

func TestRunMalformedJSONIsUnexpected(t *testing.T) {
	tests := []struct {
		path     string
		expected []string
	}{
		{PathHealth, []string{PathHealth}},
		{PathProfile, []string{PathHealth, PathRegister, PathLogin, PathProfile}},
		{PathGeneratePlan, []string{PathHealth, PathRegister, PathLogin, PathProfile, PathGeneratePlan}},
		{PathCurrentPlan, allPaths},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := newFixture(t, coachtest.WithOverride(tt.path, coachtest.Override{
				Body:        "definitely not json",
				ContentType: "text/plain",
			}))

			_, _, _, err := run(t, testConfig(s.URL))
			require.Error(t, err)
			assert.False(t, IsConnectivity(err))
			assert.Contains(t, err.Error(), "not valid JSON")
			assert.Equal(t, tt.expected, s.Paths())
		})
	}
}

func TestRunRegisterNonJSONBodyIsNotFatal(t *testing.T) {
	s := newFixture(t, coachtest.WithOverride(PathRegister, coachtest.Override{
		Status:      http.StatusConflict,
		Body:        "account exists",
		ContentType: "text/plain",
	}))

	_, report, out, err := run(t, testConfig(s.URL))
	require.NoError(t, err)
	assert.Contains(t, out, "Response: account exists")
	assert.Equal(t, http.StatusConflict, report.Steps[1].StatusCode)
}

func TestRunUnreachable(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	baseURL := closed.URL
	closed.Close()

	_, report, out, err := run(t, testConfig(baseURL))
	require.Error(t, err)

	var connErr *ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, baseURL, connErr.BaseURL)
	assert.True(t, IsConnectivity(err))
	assert.Empty(t, report.Steps)
	assert.Contains(t, out, "1. Testing Health Endpoint...")
	assert.NotContains(t, out, "2. Testing")
}

// resettingListener accepts connections, reads the request and resets the
// connection without answering.
func resettingListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Read(make([]byte, 4096))
			_ = conn.(*net.TCPConn).SetLinger(0)
			conn.Close()
		}
	}()

	return "http://" + ln.Addr().String()
}

func TestRunConnectionResetIsConnectivity(t *testing.T) {
	baseURL := resettingListener(t)

	_, report, _, err := run(t, testConfig(baseURL))
	require.Error(t, err)

	var connErr *ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, baseURL, connErr.BaseURL)
	assert.Empty(t, report.Steps)
}

func TestRunTimeoutIsUnexpected(t *testing.T) {
	s := newFixture(t, coachtest.WithOverride(PathHealth, coachtest.Override{
		Body:  `{"status":"UP"}`,
		Delay: 500 * time.Millisecond,
	}))
	cfg := testConfig(s.URL)
	cfg.Timeout = "50ms"

	_, _, _, err := run(t, cfg)
	require.Error(t, err)
	assert.False(t, IsConnectivity(err))
}

func TestRunCancelledContext(t *testing.T) {
	s := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := New(testConfig(s.URL), &out).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsConnectivity(err))
}

func TestRunCustomGoal(t *testing.T) {
	s := newFixture(t)
	cfg := testConfig(s.URL)
	cfg.Goal = "Gran Fondo"

	_, _, out, err := run(t, cfg)
	require.NoError(t, err)

	reqs := s.Requests()
	assert.Equal(t, "Gran Fondo", reqs[4].Query.Get("goal"))
	assert.Contains(t, out, "Goal: Gran Fondo")
}

func TestRunWithColor(t *testing.T) {
	s := newFixture(t)

	_, _, out, err := run(t, testConfig(s.URL), WithColor(true))
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "All tests passed successfully!")
}

func TestRunWithTransport(t *testing.T) {
	var seen []string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r.URL.Path)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       http.NoBody,
			Request:    r,
		}, nil
	})

	_, _, _, err := run(t, testConfig("http://coach.invalid"), WithTransport(rt))
	require.Error(t, err)
	assert.Equal(t, []string{PathHealth}, seen)
	assert.True(t, strings.Contains(err.Error(), "health check"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
