package walkthrough

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// StepResult is one request/response exchange. It lives only long enough
// to be printed and to hand values to the next step.
type StepResult struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// OK reports a 2xx status.
func (r *StepResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the raw body.
func (r *StepResult) Text() string {
	return string(r.Body)
}

// JSON decodes the body into a generic JSON value. Numbers are kept as
// json.Number so identifiers print the way the server sent them.
func (r *StepResult) JSON() (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("response is not valid JSON (status %d): %w", r.StatusCode, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("response has trailing data after JSON value (status %d)", r.StatusCode)
	}
	return v, nil
}

// Object decodes the body as a JSON object.
func (r *StepResult) Object() (map[string]interface{}, error) {
	v, err := r.JSON()
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T (status %d)", v, r.StatusCode)
	}
	return obj, nil
}

// compact renders a decoded JSON value on one line.
func compact(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// pretty renders a decoded JSON value with two-space indentation.
func pretty(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// field renders obj[key] for display; absent keys show as null.
func field(obj map[string]interface{}, key string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return compact(v)
}
