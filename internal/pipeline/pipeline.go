// Package pipeline wraps every remote call: it attaches the current credential,
// classifies the response and routes authorization failures to the session store.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/metrics"
	"smarthome_sync/internal/session"
)

// Request describes a remote call without any session details.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON-encoded when non-nil
}

type Pipeline struct {
	baseURL   string
	transport Transport
	sessions  *session.Store
	log       *logger.Logger
}

const (
	outcomeOK             = "ok"
	outcomeSessionExpired = "session_expired"
	outcomeRemoteError    = "remote_error"
	outcomeNetworkError   = "network_error"
)

func New(baseURL string, transport Transport, sessions *session.Store, log *logger.Logger) *Pipeline {
	return &Pipeline{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		sessions:  sessions,
		log:       logger.OrNop(log),
	}
}

// BaseURL returns the backend root the pipeline resolves paths against.
func (p *Pipeline) BaseURL() string { return p.baseURL }

// Sessions returns the store the pipeline reads credentials from.
func (p *Pipeline) Sessions() *session.Store { return p.sessions }

// Send performs req and returns the raw body of a 2xx response.
//
// A 401 fails with ErrSessionExpired and reports the credential's generation
// to the session store, which notifies subscribers at most once per episode.
// Other non-2xx statuses fail with *RemoteError and transport failures with
// *NetworkError. Nothing is retried.
func (p *Pipeline) Send(ctx context.Context, req Request) ([]byte, error) {
	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if payload != nil {
		header.Set("Content-Type", "application/json")
	}
	cred, signedIn := p.sessions.Credential()
	if signedIn {
		header.Set("Authorization", "Bearer "+cred.Token)
	}

	start := time.Now()
	status, body, err := p.transport.Perform(ctx, req.Method, p.resolve(req), header, payload)
	metrics.PipelineRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		p.observe(outcomeNetworkError)
		p.log.Infow("pipeline_network_error", "method", req.Method, "path", req.Path, "err", err)
		return nil, &NetworkError{Cause: err}

	case status == http.StatusUnauthorized:
		p.observe(outcomeSessionExpired)
		if signedIn && p.sessions.Expire(cred.Generation) {
			p.log.Warnw("pipeline_session_expired", "method", req.Method, "path", req.Path)
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrSessionExpired)

	case status < 200 || status > 299:
		p.observe(outcomeRemoteError)
		p.log.Infow("pipeline_remote_error", "method", req.Method, "path", req.Path, "status", status)
		return nil, &RemoteError{Status: status, Body: body}
	}

	p.observe(outcomeOK)
	return body, nil
}

func (p *Pipeline) observe(outcome string) {
	metrics.PipelineRequestsTotal.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) resolve(req Request) string {
	u := p.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(body)
}

// Do sends req and decodes a JSON response into T.
func Do[T any](ctx context.Context, p *Pipeline, req Request) (T, error) {
	var out T
	body, err := p.Send(ctx, req)
	if err != nil {
		return out, err
	}
	if len(body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	return out, nil
}

// Exec sends req and discards the response body.
func Exec(ctx context.Context, p *Pipeline, req Request) error {
	_, err := p.Send(ctx, req)
	return err
}
