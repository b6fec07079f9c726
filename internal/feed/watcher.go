// Package feed applies authoritative state pushed by the backend over a
// websocket to the local entity stores.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/optimistic"
	"smarthome_sync/internal/pipeline"
	"smarthome_sync/internal/session"

	"github.com/gorilla/websocket"
)

var ErrNotSignedIn = errors.New("feed: not signed in")

const (
	handshakeTimeout = 10 * time.Second
	pongWait         = 60 * time.Second
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stats counts what the watcher did with pushed updates.
type Stats struct {
	Applied int
	Skipped int // entity busy with a local mutation
	Unknown int
}

type Watcher struct {
	url      string
	sessions *session.Store
	devices  *optimistic.Controller[models.Device]
	lights   *optimistic.Controller[models.Light]
	dialer   *websocket.Dialer
	log      *logger.Logger

	stats Stats
}

// NewWatcher builds a watcher for baseURL's /ws endpoint. Either controller may be nil.
func NewWatcher(baseURL string, sessions *session.Store, devices *optimistic.Controller[models.Device], lights *optimistic.Controller[models.Light], log *logger.Logger) (*Watcher, error) {
	u, err := wsURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		url:      u,
		sessions: sessions,
		devices:  devices,
		lights:   lights,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:      logger.OrNop(log),
	}, nil
}

func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// Run dials the feed and applies updates until ctx is done or the connection
// drops. It does not reconnect. A 401 handshake is reported to the session
// store and returned as pipeline.ErrSessionExpired.
func (w *Watcher) Run(ctx context.Context) (Stats, error) {
	cred, ok := w.sessions.Credential()
	if !ok {
		return w.stats, ErrNotSignedIn
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)
	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			w.sessions.Expire(cred.Generation)
			return w.stats, fmt.Errorf("feed handshake: %w", pipeline.ErrSessionExpired)
		}
		return w.stats, &pipeline.NetworkError{Cause: err}
	}
	defer func() { _ = conn.Close() }()
	w.log.Infow("feed_connected", "url", w.url)

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return w.stats, ctx.Err()
			}
			return w.stats, fmt.Errorf("feed read: %w", err)
		}
		if err := w.apply(env); err != nil {
			w.log.Warnw("feed_bad_message", "type", env.Type, "err", err)
		}
	}
}

func (w *Watcher) apply(env envelope) error {
	switch env.Type {
	case "device":
		var d models.Device
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return err
		}
		w.count(applyIfIdle(w.devices, d.ID, d))
	case "light":
		var l models.Light
		if err := json.Unmarshal(env.Data, &l); err != nil {
			return err
		}
		w.count(applyIfIdle(w.lights, l.ID, l))
	default:
		w.stats.Unknown++
	}
	return nil
}

func (w *Watcher) count(applied bool) {
	if applied {
		w.stats.Applied++
	} else {
		w.stats.Skipped++
	}
}

func applyIfIdle[E any](c *optimistic.Controller[E], id int, e E) bool {
	if c == nil {
		return false
	}
	return c.ApplyIfIdle(id, e)
}
