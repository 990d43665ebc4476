// Package api is the typed client of the Twotty REST backend.
//
// Every helper returns (value, error) where a non-nil error is an *Error with
// a Kind that separates rejected credentials from missing resources and
// server faults. Requests are never cached and never retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/monitoring"
)

// ClearPolicy decides which failures of the credential-clearing endpoints
// (user profile, user posts, post deletion) delete the stored credential.
type ClearPolicy int

const (
	// ClearOnAnyFailure deletes on every failure, including 404 and 5xx.
	ClearOnAnyFailure ClearPolicy = iota
	// ClearOnAuthFailure deletes only when the backend rejected the token.
	ClearOnAuthFailure
)

// ParseClearPolicy maps the config value to a policy.
func ParseClearPolicy(s string) ClearPolicy {
	if s == "auth" {
		return ClearOnAuthFailure
	}
	return ClearOnAnyFailure
}

// Options configure a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Policy     ClearPolicy
	Logger     *logger.Logger
	// OnCredentialCleared runs after a failed call deleted the credential,
	// with the token that was deleted.
	OnCredentialCleared func(ctx context.Context, token string)
}

type Client struct {
	baseURL   string
	http      *http.Client
	policy    ClearPolicy
	logg      *logger.Logger
	onCleared func(ctx context.Context, token string)
}

// New creates a Client. A pooled cleanhttp client is used unless one is given.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
		hc.Timeout = opts.Timeout
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.New()
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		http:      hc,
		policy:    opts.Policy,
		logg:      logg,
		onCleared: opts.OnCredentialCleared,
	}
}

// Do sends one request to the backend. path is appended to the base URL; a
// non-nil body is JSON-encoded; a non-empty token becomes a bearer header.
func (c *Client) Do(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.http.Do(req)
}

// call describes one helper invocation.
type call struct {
	endpoint string
	method   string
	path     string
	body     any
	// expect lists the success statuses.
	expect []int
	// clears marks endpoints whose failures delete the credential under
	// ClearOnAnyFailure.
	clears bool
	// classify overrides the default status classification.
	classify func(status int, message string) Kind
}

func (cl call) ok(status int) bool {
	for _, s := range cl.expect {
		if s == status {
			return true
		}
	}
	return false
}

// send performs cl with token and hands a successful response to decode.
// The returned error is always an *Error.
func (c *Client) send(ctx context.Context, token string, cl call, decode func(io.Reader) error) error {
	started := time.Now()

	resp, err := c.Do(ctx, cl.method, cl.path, cl.body, token)
	if err != nil {
		apiErr := &Error{Kind: KindNetwork, Endpoint: cl.endpoint, Err: err}
		monitoring.ObserveAPICall(cl.endpoint, string(apiErr.Kind), started)
		c.logg.Error("api", "Backend request failed for "+cl.endpoint, err)
		return apiErr
	}
	defer resp.Body.Close()

	if !cl.ok(resp.StatusCode) {
		msg := errorMessage(resp.Body)
		kind := classify(resp.StatusCode, msg)
		if cl.classify != nil {
			kind = cl.classify(resp.StatusCode, msg)
		}
		monitoring.ObserveAPICall(cl.endpoint, string(kind), started)
		c.logg.Warn("api", fmt.Sprintf("%s returned status %d (%s)", cl.endpoint, resp.StatusCode, kind))
		return &Error{Kind: kind, Endpoint: cl.endpoint, Status: resp.StatusCode, Message: msg}
	}

	if decode != nil {
		if err := decode(resp.Body); err != nil {
			monitoring.ObserveAPICall(cl.endpoint, string(KindDecode), started)
			c.logg.Error("api", "Malformed response from "+cl.endpoint, err)
			return &Error{Kind: KindDecode, Endpoint: cl.endpoint, Status: resp.StatusCode, Err: err}
		}
	}

	monitoring.ObserveAPICall(cl.endpoint, "ok", started)
	return nil
}

// sendAuthed reads the token fresh from creds, short-circuits when it is
// absent, and applies the clearing policy to failures.
func (c *Client) sendAuthed(ctx context.Context, creds credential.Store, cl call, decode func(io.Reader) error) error {
	token, ok := creds.Get()
	if !ok {
		monitoring.ObserveAPICall(cl.endpoint, string(KindNoCredential), time.Now())
		return &Error{Kind: KindNoCredential, Endpoint: cl.endpoint}
	}

	err := c.send(ctx, token, cl, decode)
	if err == nil {
		return nil
	}

	kind := KindOf(err)
	if kind == KindAuth || (cl.clears && c.policy == ClearOnAnyFailure) {
		c.clear(ctx, creds, token, cl.endpoint, kind)
	}
	return err
}

func (c *Client) clear(ctx context.Context, creds credential.Store, token, endpoint string, kind Kind) {
	creds.Delete()
	monitoring.CredentialClearsTotal.WithLabelValues(endpoint, string(kind)).Inc()
	c.logg.Info("api", fmt.Sprintf("Credential cleared after %s failure (%s)", endpoint, kind))
	if c.onCleared != nil {
		c.onCleared(ctx, token)
	}
}
