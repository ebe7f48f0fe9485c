package http

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
)

type sessionRepo struct {
	businesses []domain.Business
	clicks     map[string]int
}

func (r *sessionRepo) Find(ctx context.Context, f domain.BusinessFilter, p domain.Page) ([]domain.Business, error) {
	return r.businesses, nil
}
func (r *sessionRepo) CountAll(ctx context.Context) (int64, error) { return int64(len(r.businesses)), nil }
func (r *sessionRepo) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	return nil, domain.ErrNotFound
}
func (r *sessionRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Business, error) {
	return nil, nil
}
func (r *sessionRepo) RecordClick(ctx context.Context, id string, at time.Time) (*domain.Business, error) {
	for _, b := range r.businesses {
		if b.ID == id {
			r.clicks[id]++
			n := r.clicks[id]
			b.ClickCount, b.LastClickedAt = &n, &at
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

func newTestSession(t *testing.T) (*viewportSession, chan wsServerMessage) {
	t.Helper()
	repo := &sessionRepo{
		clicks: map[string]int{},
		businesses: []domain.Business{
			{ID: "b1", Name: "Bäckerei Schmidt", Location: domain.Coordinate{Latitude: 52.5200, Longitude: 13.4050}},
			{ID: "b2", Name: "Café Mitte", Location: domain.Coordinate{Latitude: 52.5230, Longitude: 13.4100}},
		},
	}
	settings := DefaultSettings()
	settings.Viewport.Debounce = 10 * time.Millisecond
	deps := &Dependencies{
		Search:     usecases.NewSearchService(repo, nil, 500, 0),
		Ranking:    usecases.NewRankingService(),
		Businesses: usecases.NewBusinessService(repo, nil, nil),
		Settings:   settings,
	}

	out := make(chan wsServerMessage, 64)
	s := newViewportSession(context.Background(), deps, slog.Default(), func(m wsServerMessage) error {
		out <- m
		return nil
	})
	t.Cleanup(s.close)
	return s, out
}

// await returns the first message of type typ accepted by ok.
func await(t *testing.T, out chan wsServerMessage, typ string, ok func(wsServerMessage) bool) wsServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-out:
			if m.Type == typ && (ok == nil || ok(m)) {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s message", typ)
		}
	}
}

func loaded(n int) func(wsServerMessage) bool {
	return func(m wsServerMessage) bool {
		return !m.Snapshot.Loading && len(m.Snapshot.Results) == n
	}
}

func openViewport(t *testing.T, s *viewportSession, out chan wsServerMessage) {
	t.Helper()
	s.handle(context.Background(), []byte(`{"type":"viewport","zoom":18,
		"bounds":{"min_lat":52.50,"max_lat":52.55,"min_long":13.38,"max_long":13.43}}`))
	await(t, out, "snapshot", loaded(2))
}

func TestSession_ViewportPushesSnapshot(t *testing.T) {
	s, out := newTestSession(t)
	openViewport(t, s, out)
}

func TestSession_ClickRecordsAndReplies(t *testing.T) {
	s, out := newTestSession(t)
	openViewport(t, s, out)

	s.handle(context.Background(), []byte(`{"type":"click","location":{"latitude":52.5201,"longitude":13.4051}}`))
	m := await(t, out, "click", nil)
	if m.Business == nil || m.Business.ID != "b1" {
		t.Fatalf("expected b1, got %+v", m.Business)
	}
	if m.Business.ClickCount == nil || *m.Business.ClickCount != 1 {
		t.Errorf("expected click recorded, got %v", m.Business.ClickCount)
	}
}

func TestSession_ClickOnEmptyMap(t *testing.T) {
	s, out := newTestSession(t)
	openViewport(t, s, out)

	s.handle(context.Background(), []byte(`{"type":"click","location":{"latitude":52.54,"longitude":13.39}}`))
	if m := await(t, out, "click", nil); m.Business != nil {
		t.Errorf("expected no business, got %+v", m.Business)
	}
}

func TestSession_Geocode(t *testing.T) {
	s, out := newTestSession(t)
	openViewport(t, s, out)

	s.handle(context.Background(), []byte(`{"type":"geocode","query":"café"}`))
	m := await(t, out, "geocode", nil)
	if len(m.Results) != 1 || m.Results[0].BusinessID != "b2" {
		t.Errorf("expected local hit for b2, got %+v", m.Results)
	}
}

func TestSession_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"invalid json", `{`},
		{"unknown type", `{"type":"teleport"}`},
		{"missing bounds", `{"type":"viewport"}`},
		{"inverted bounds", `{"type":"viewport","bounds":{"min_lat":53,"max_lat":52,"min_long":13,"max_long":14}}`},
		{"unknown viewport event", `{"type":"viewport","event":"spin","bounds":{"min_lat":52,"max_lat":53,"min_long":13,"max_long":14}}`},
		{"missing location", `{"type":"click"}`},
		{"unknown cluster", `{"type":"expand","cluster_id":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, out := newTestSession(t)
			s.handle(context.Background(), []byte(tt.msg))
			if m := await(t, out, "error", nil); m.Error == "" {
				t.Error("expected error text")
			}
		})
	}
}

func TestSession_RelayClickOnlyWhenVisible(t *testing.T) {
	s, out := newTestSession(t)
	openViewport(t, s, out)

	s.relayClick(&domain.BusinessClicked{BusinessID: "elsewhere", ClickCount: 9})
	s.relayClick(&domain.BusinessClicked{BusinessID: "b2", ClickCount: 4})

	m := await(t, out, "clicked", nil)
	if m.Clicked.BusinessID != "b2" {
		t.Errorf("expected relay for b2 only, got %s", m.Clicked.BusinessID)
	}
}

func TestWSMapEngine_InfersEvent(t *testing.T) {
	e := &wsMapEngine{}
	var got []string
	e.OnDragEnd(func(domain.ViewportChanged) { got = append(got, "drag") })
	e.OnZoomEnd(func(domain.ViewportChanged) { got = append(got, "zoom") })

	e.dispatch("", domain.ViewportChanged{Zoom: 12})
	e.dispatch("", domain.ViewportChanged{Zoom: 12})
	e.dispatch("", domain.ViewportChanged{Zoom: 13})
	e.dispatch("zoomend", domain.ViewportChanged{Zoom: 13})
	e.dispatch("dragend", domain.ViewportChanged{Zoom: 14})

	want := []string{"drag", "drag", "zoom", "zoom", "drag"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/v1/businesses", "/v1/businesses", true},
		{"/v1/businesses/", "/v1/businesses", true},
		{"/v1/businesses/abc", "/v1/businesses/:id", true},
		{"/v1/businesses/search", "/v1/businesses", false},
		{"/v1/businesses/abc/clicks", "/v1/businesses/:id", false},
		{"/v1/stats", "/v1/businesses", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestETagMatches(t *testing.T) {
	etag := `W/"abc"`
	for header, want := range map[string]bool{
		`W/"abc"`:      true,
		`"abc"`:        true,
		`"x", W/"abc"`: true,
		`*`:            true,
		`W/"abd"`:      false,
		``:             false,
	} {
		if got := etagMatches(header, etag); got != want {
			t.Errorf("etagMatches(%q) = %v, want %v", header, got, want)
		}
	}
}
