package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
	"github.com/supportyourlocal/mapdir/internal/pkg/metrics"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 64 << 10
)

// wsClientMessage is sent by the map client. Type selects which fields are read:
//
//	{"type":"viewport","event":"dragend","bounds":{...},"zoom":12}
//	{"type":"query","query":"bäckerei"}
//	{"type":"highlight","ids":["a","b"]}
//	{"type":"click","location":{"latitude":52.5,"longitude":13.4}}
//	{"type":"expand","cluster_id":"c:12:3"}
//	{"type":"geocode","query":"adlershof"}
type wsClientMessage struct {
	Type      string                 `json:"type"`
	Event     string                 `json:"event,omitempty"` // dragend or zoomend, inferred when empty
	Bounds    *domain.ViewportBounds `json:"bounds,omitempty"`
	Zoom      int                    `json:"zoom"`
	Query     string                 `json:"query"`
	IDs       []string               `json:"ids,omitempty"`
	Location  *domain.Coordinate     `json:"location,omitempty"`
	ClusterID string                 `json:"cluster_id,omitempty"`
}

// wsServerMessage is pushed to the client.
type wsServerMessage struct {
	Type      string                     `json:"type"` // snapshot, click, clicked, expansion, geocode, error
	Snapshot  *usecases.ViewportSnapshot `json:"snapshot,omitempty"`
	Business  *domain.Business           `json:"business,omitempty"`
	Clicked   *domain.BusinessClicked    `json:"clicked,omitempty"`
	ClusterID string                     `json:"cluster_id,omitempty"`
	Zoom      *int                       `json:"zoom,omitempty"`
	Results   []domain.GeocodeResult     `json:"results,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// wsMapEngine adapts the client's viewport frames to ports.MapEngine.
type wsMapEngine struct {
	mu       sync.Mutex
	drag     []func(domain.ViewportChanged)
	zoom     []func(domain.ViewportChanged)
	lastZoom int
	seen     bool
}

func (e *wsMapEngine) OnDragEnd(fn func(domain.ViewportChanged)) {
	e.mu.Lock()
	e.drag = append(e.drag, fn)
	e.mu.Unlock()
}

func (e *wsMapEngine) OnZoomEnd(fn func(domain.ViewportChanged)) {
	e.mu.Lock()
	e.zoom = append(e.zoom, fn)
	e.mu.Unlock()
}

// dispatch fires the handlers for event, or infers it from the zoom change.
func (e *wsMapEngine) dispatch(event string, ev domain.ViewportChanged) {
	e.mu.Lock()
	if event == "" {
		event = "dragend"
		if e.seen && ev.Zoom != e.lastZoom {
			event = "zoomend"
		}
	}
	e.lastZoom, e.seen = ev.Zoom, true
	handlers := e.drag
	if event == "zoomend" {
		handlers = e.zoom
	}
	handlers = slices.Clone(handlers)
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// viewportSession binds one client to its own ViewportController.
type viewportSession struct {
	deps   *Dependencies
	ctrl   *usecases.ViewportController
	engine *wsMapEngine
	send   func(wsServerMessage) error
	logger *slog.Logger
}

func newViewportSession(ctx context.Context, deps *Dependencies, logger *slog.Logger, send func(wsServerMessage) error) *viewportSession {
	s := &viewportSession{
		deps:   deps,
		send:   send,
		logger: logger,
		engine: &wsMapEngine{},
		ctrl: usecases.NewViewportController(deps.Search, deps.Settings.Viewport,
			usecases.WithBaseContext(ctx),
			usecases.WithLogger(logger),
		),
	}
	s.ctrl.Attach(s.engine)
	s.ctrl.OnChange(func(snap usecases.ViewportSnapshot) {
		_ = s.send(wsServerMessage{Type: "snapshot", Snapshot: &snap})
	})
	return s
}

// close stops the controller and waits for in-flight fetches.
func (s *viewportSession) close() {
	s.ctrl.Close()
	s.ctrl.Wait()
}

// relayClick forwards a click recorded anywhere if the business is on screen.
func (s *viewportSession) relayClick(ev *domain.BusinessClicked) {
	visible := slices.ContainsFunc(s.ctrl.CurrentResults(), func(b domain.Business) bool {
		return b.ID == ev.BusinessID
	})
	if visible {
		_ = s.send(wsServerMessage{Type: "clicked", Clicked: ev})
	}
}

func (s *viewportSession) fail(msg string) {
	_ = s.send(wsServerMessage{Type: "error", Error: msg})
}

// handle processes one client frame.
func (s *viewportSession) handle(ctx context.Context, raw []byte) {
	var m wsClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		s.fail("invalid JSON")
		return
	}

	switch m.Type {
	case "viewport":
		if m.Bounds == nil {
			s.fail("bounds required")
			return
		}
		if err := m.Bounds.Validate(); err != nil {
			s.fail(err.Error())
			return
		}
		switch m.Event {
		case "", "dragend", "zoomend":
		default:
			s.fail("unknown viewport event: " + m.Event)
			return
		}
		s.engine.dispatch(m.Event, domain.ViewportChanged{Bounds: *m.Bounds, Zoom: m.Zoom})

	case "query":
		if len(m.Query) > maxQueryLen {
			s.fail("query too long")
			return
		}
		if err := s.ctrl.SetTextQuery(m.Query); err != nil {
			s.fail(err.Error())
		}

	case "highlight":
		s.ctrl.SetHighlighted(m.IDs)

	case "click":
		if m.Location == nil || !m.Location.Valid() {
			s.fail("valid location required")
			return
		}
		b, ok := s.ctrl.ResolveClick(*m.Location)
		if !ok {
			_ = s.send(wsServerMessage{Type: "click"})
			return
		}
		if s.deps.Businesses != nil {
			updated, err := s.deps.Businesses.RecordClick(ctx, b.ID)
			if err != nil {
				s.logger.Warn("record click failed", "business_id", b.ID, "error", err)
			} else {
				b = *updated
			}
		}
		_ = s.send(wsServerMessage{Type: "click", Business: &b})

	case "expand":
		z, ok := s.ctrl.ExpansionZoom(m.ClusterID)
		if !ok {
			s.fail("unknown cluster " + m.ClusterID)
			return
		}
		_ = s.send(wsServerMessage{Type: "expansion", ClusterID: m.ClusterID, Zoom: &z})

	case "geocode":
		geocode := s.deps.Geocode
		if geocode == nil {
			geocode = usecases.NewGeocodeService(nil)
		}
		_ = s.send(wsServerMessage{Type: "geocode", Results: geocode.Forward(ctx, m.Query, s.ctrl)})

	default:
		s.fail("unknown message type: " + m.Type)
	}
}

// ViewportSessionHandler upgrades to a WebSocket that drives a viewport
// controller: the client streams map events, the server pushes snapshots.
func ViewportSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		c.SetReadLimit(wsReadLimit)

		logger := slog.Default().With("remote", c.RemoteAddr().String())
		logger.Debug("ws session opened")
		metrics.ActiveViewportSessions.Inc()
		defer metrics.ActiveViewportSessions.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		send := func(m wsServerMessage) error {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		session := newViewportSession(ctx, deps, logger, send)
		defer session.close()

		if deps.Clicks != nil {
			unsubscribe, err := deps.Clicks.SubscribeClicks(session.relayClick)
			if err != nil {
				logger.Warn("click feed unavailable", "error", err)
			} else {
				defer unsubscribe()
			}
		}

		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}
			session.handle(ctx, raw)
		}
		logger.Debug("ws session closed")
	}
}
