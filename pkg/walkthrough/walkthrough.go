// Package walkthrough runs the fixed MyCycleCoach API smoke sequence:
// health, register, login, profile, plan generation and current plan.
// Steps run one after another on the calling goroutine; login gates the
// three protected steps.
package walkthrough

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/mycyclecoach/walkthrough/pkg/auth"
	"github.com/mycyclecoach/walkthrough/pkg/config"
)

const (
	PathHealth       = "/actuator/health"
	PathRegister     = "/api/v1/auth/register"
	PathLogin        = "/api/v1/auth/login"
	PathProfile      = "/api/v1/user/profile"
	PathGeneratePlan = "/api/v1/training/plan/generate"
	PathCurrentPlan  = "/api/v1/training/plan/current"

	// tokenPreview is how much of the access token is echoed.
	tokenPreview = 30
)

var stepNames = [...]string{
	1: "Health Endpoint",
	2: "User Registration",
	3: "User Login",
	4: "Get Profile (Protected Endpoint)",
	5: "Generate Training Plan",
	6: "Get Current Plan",
}

// Walkthrough executes one run of the sequence.
type Walkthrough struct {
	cfg     *config.WalkthroughConfig
	session *Session
	client  *Client
	printer *Printer
	logger  log.Interface
	report  *Report
}

// Option customises a Walkthrough.
type Option func(*Walkthrough)

// WithLogger sets the diagnostics logger.
func WithLogger(logger log.Interface) Option {
	return func(w *Walkthrough) {
		w.logger = logger
	}
}

// WithColor turns colored output on or off.
func WithColor(enabled bool) Option {
	return func(w *Walkthrough) {
		w.printer = NewPrinter(w.printer.w, enabled)
	}
}

// WithTransport replaces the HTTP transport, keeping the per-call timeout.
func WithTransport(rt http.RoundTripper) Option {
	return func(w *Walkthrough) {
		w.client.http.Transport = rt
	}
}

// New creates a Walkthrough that prints to out.
func New(cfg *config.WalkthroughConfig, out io.Writer, opts ...Option) *Walkthrough {
	session := NewSession(cfg)
	w := &Walkthrough{
		cfg:     cfg,
		session: session,
		printer: NewPrinter(out, false),
		logger:  &log.Logger{Handler: discard.Default, Level: log.InfoLevel},
		report:  &Report{RunID: session.RunID},
	}
	w.client = NewClient(cfg.BaseURL, cfg.RequestTimeout(), cfg.UserAgent, session.RunID, w.logger)

	for _, opt := range opts {
		opt(w)
	}
	w.client.logger = w.logger

	return w
}

// Session returns the run's session context.
func (w *Walkthrough) Session() *Session {
	return w.session
}

// Run executes the six steps in order. A non-nil error is either a
// *ConnectivityError, a *LoginError (only with FailOnLoginError) or an
// unexpected failure; non-2xx statuses are otherwise reported, not returned.
func (w *Walkthrough) Run(ctx context.Context) (*Report, error) {
	w.printer.Banner("MyCycleCoach API Test Suite")
	w.printer.Note("Run ID: %s", w.session.RunID)
	w.printer.Blank()

	w.logger.WithFields(log.Fields{
		"base_url": w.session.BaseURL,
		"run_id":   w.session.RunID,
	}).Info("starting walkthrough")

	if err := w.run(ctx); err != nil {
		return w.report, err
	}
	return w.report, nil
}

func (w *Walkthrough) run(ctx context.Context) error {
	if err := w.health(ctx); err != nil {
		return err
	}
	if err := w.register(ctx); err != nil {
		return err
	}

	if err := w.login(ctx); err != nil {
		return err
	}
	// Protected steps need a token; a rejected login leaves the session without one.
	if !w.session.Authenticated() {
		for n := 4; n <= 6; n++ {
			w.report.record(n, stepNames[n], 0, OutcomeSkipped)
		}
		w.printer.Note("%s", w.report.Summary())
		if w.cfg.FailOnLoginError {
			return &LoginError{StatusCode: w.report.LoginStatus}
		}
		return nil
	}

	if err := w.profile(ctx); err != nil {
		return err
	}
	if err := w.generatePlan(ctx); err != nil {
		return err
	}
	if err := w.currentPlan(ctx); err != nil {
		return err
	}

	w.printer.Closing("✓ All tests passed successfully!")
	w.printer.Note("%s", w.report.Summary())
	return nil
}

// statusOutcome maps a 2xx to ok.
func statusOutcome(res *StepResult) Outcome {
	if res.OK() {
		return OutcomeOK
	}
	return OutcomeFailed
}

func (w *Walkthrough) health(ctx context.Context) error {
	const n = 1
	w.printer.Step(n, stepNames[n])

	res, err := w.client.do(ctx, request{method: http.MethodGet, path: PathHealth})
	if err != nil {
		return err
	}
	w.printer.Status(res.StatusCode)

	body, err := res.JSON()
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	w.printer.Field("Response", compact(body))
	w.printer.Blank()

	w.report.record(n, stepNames[n], res.StatusCode, statusOutcome(res))
	return nil
}

func (w *Walkthrough) register(ctx context.Context) error {
	const n = 2
	w.printer.Step(n, stepNames[n])

	res, err := w.client.do(ctx, request{
		method: http.MethodPost,
		path:   PathRegister,
		body:   w.session.credentials(),
	})
	if err != nil {
		return err
	}
	w.printer.Status(res.StatusCode)

	outcome := OutcomeFailed
	if res.StatusCode == http.StatusCreated {
		outcome = OutcomeOK
		w.printer.Success("Result", "User registered successfully!")
	} else {
		// Usually the account exists from an earlier run.
		w.printer.Field("Response", res.Text())
	}
	w.printer.Blank()

	w.report.record(n, stepNames[n], res.StatusCode, outcome)
	return nil
}

// login stores the token in the session on a 200. A rejected login is
// recorded and leaves the session unauthenticated.
func (w *Walkthrough) login(ctx context.Context) error {
	const n = 3
	w.printer.Step(n, stepNames[n])

	res, err := w.client.do(ctx, request{
		method: http.MethodPost,
		path:   PathLogin,
		body:   w.session.credentials(),
	})
	if err != nil {
		return err
	}
	w.printer.Status(res.StatusCode)

	if res.StatusCode != http.StatusOK {
		w.printer.Failure("Error", res.StatusCode)
		w.printer.Field("Response", res.Text())
		w.report.LoginFailed = true
		w.report.LoginStatus = res.StatusCode
		w.report.record(n, stepNames[n], res.StatusCode, OutcomeFailed)
		w.logger.WithField("status", res.StatusCode).Warn("login rejected, skipping protected steps")
		return nil
	}

	body, err := res.Object()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	token, _ := body["accessToken"].(string)
	if token == "" {
		return errors.New("login: response has no accessToken")
	}
	tokenType, ok := body["tokenType"].(string)
	if !ok {
		return errors.New("login: response has no tokenType")
	}
	expiresIn, err := integer(body["expiresIn"])
	if err != nil {
		return fmt.Errorf("login: expiresIn: %w", err)
	}

	w.session.AccessToken = token
	w.session.TokenType = tokenType
	w.session.ExpiresIn = expiresIn

	w.printer.Field("Access Token", auth.MaskToken(token, tokenPreview))
	w.printer.Field("Token Type", tokenType)
	w.printer.Field("Expires In", fmt.Sprintf("%d seconds", expiresIn))

	if info, err := auth.InspectToken(token); err == nil {
		if info.Subject != "" {
			w.printer.Note("Subject: %s", info.Subject)
		}
		if !info.ExpiresAt.IsZero() {
			w.printer.Note("Expires At: %s", info.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
		}
	} else {
		w.logger.WithError(err).Debug("access token is not a JWT")
	}
	w.printer.Blank()

	w.report.record(n, stepNames[n], res.StatusCode, OutcomeOK)
	return nil
}

func (w *Walkthrough) profile(ctx context.Context) error {
	const n = 4
	w.printer.Step(n, stepNames[n])

	res, err := w.client.do(ctx, w.authorized(http.MethodGet, PathProfile, nil))
	if err != nil {
		return err
	}
	w.printer.Status(res.StatusCode)

	body, err := res.JSON()
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	w.printer.Field("Response", compact(body))
	w.printer.Blank()

	w.report.record(n, stepNames[n], res.StatusCode, statusOutcome(res))
	return nil
}

func (w *Walkthrough) generatePlan(ctx context.Context) error {
	const n = 5
	w.printer.Step(n, stepNames[n])

	query := url.Values{"goal": []string{w.cfg.Goal}}
	res, err := w.client.do(ctx, w.authorized(http.MethodPost, PathGeneratePlan, query))
	if err != nil {
		return err
	}
	w.printer.Status(res.StatusCode)

	plan, err := res.Object()
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}
	w.printer.Field("Plan ID", field(plan, "id"))
	w.printer.Field("Goal", field(plan, "goal"))
	w.printer.Field("Status", field(plan, "status"))

	if id, ok := plan["id"]; ok && id != nil {
		w.session.PlanID = field(plan, "id")
	}
	w.printer.Blank()

	w.report.record(n, stepNames[n], res.StatusCode, statusOutcome(res))
	return nil
}

func (w *Walkthrough) currentPlan(ctx context.Context) error {
	const n = 6
	w.printer.Step(n, stepNames[n])

	res, err := w.client.do(ctx, w.authorized(http.MethodGet, PathCurrentPlan, nil))
	if err != nil {
		return err
	}
	w.printer.Status(res.StatusCode)

	plan, err := res.JSON()
	if err != nil {
		return fmt.Errorf("get current plan: %w", err)
	}
	w.printer.Field("Current Plan", pretty(plan))
	w.printer.Blank()

	w.report.record(n, stepNames[n], res.StatusCode, statusOutcome(res))
	return nil
}

func (w *Walkthrough) authorized(method, path string, query url.Values) request {
	return request{
		method:        method,
		path:          path,
		query:         query,
		json:          true,
		authorization: w.session.Authorization(),
	}
}

// integer accepts a JSON number holding a whole value.
func integer(v interface{}) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New("missing")
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
