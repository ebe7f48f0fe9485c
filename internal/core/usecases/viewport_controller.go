package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/ports"
	"github.com/supportyourlocal/mapdir/internal/pkg/cluster"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
	"github.com/supportyourlocal/mapdir/internal/pkg/metrics"
)

// Fetch reasons, also used as metric labels.
const (
	FetchInitial         = "initial"
	FetchOutsideCoarse   = "outside_coarse"
	FetchRangeTransition = "range_transition"
	FetchTextQuery       = "text_query"
)

// ViewportConfig holds the thresholds that decide when a viewport change
// triggers a new store query.
type ViewportConfig struct {
	MaxRangeMiles  float64       // diagonal above which searches return out_of_range
	BufferDegrees  float64       // padding added around the viewport on refetch
	ExtendCapMiles float64       // padded diagonal above which the raw viewport is fetched
	Debounce       time.Duration // quiet interval for Submit
	PageSize       int
	MaxPages       int // pages walked per fetch before the set is truncated
	Cluster        cluster.Options
}

// DefaultViewportConfig returns the thresholds tuned for a single-country dataset.
func DefaultViewportConfig() ViewportConfig {
	return ViewportConfig{
		MaxRangeMiles:  500,
		BufferDegrees:  0.5,
		ExtendCapMiles: 400,
		Debounce:       500 * time.Millisecond,
		PageSize:       100,
		MaxPages:       50,
		Cluster:        cluster.DefaultOptions(),
	}
}

// ViewportSnapshot is the observable state of a controller. Seq increases
// with every state change, including several within one generation.
type ViewportSnapshot struct {
	Seq         uint64                `json:"seq"`
	Generation  uint64                `json:"generation"`
	Precise     *domain.ViewportBounds `json:"precise_bounds,omitempty"`
	Coarse      *domain.ViewportBounds `json:"coarse_bounds,omitempty"`
	Zoom        int                   `json:"zoom"`
	TextQuery   string                `json:"text_query,omitempty"`
	Loading     bool                  `json:"loading"`
	Status      domain.SearchStatus   `json:"status,omitempty"`
	Error       string                `json:"error,omitempty"`
	Results     []domain.Business     `json:"results"`
	Clusters    []domain.ClusterNode  `json:"clusters"`
	Highlighted []string              `json:"highlighted,omitempty"`
}

// ControllerOption configures a ViewportController.
type ControllerOption func(*ViewportController)

// WithLogger sets the logger used for fetch failures and rejected events.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *ViewportController) { c.logger = l }
}

// WithBaseContext sets the context fetches are derived from.
func WithBaseContext(ctx context.Context) ControllerOption {
	return func(c *ViewportController) { c.parent = ctx }
}

// ViewportController sits between high-frequency viewport events and the
// search store. It keeps a generous coarse bounds for querying and the exact
// precise bounds for display, and discards responses that arrive after a
// newer query was issued.
type ViewportController struct {
	cfg     ViewportConfig
	search  Searcher
	ranking *RankingService
	logger  *slog.Logger

	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	debounce *Debouncer
	wg       sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	seq         uint64
	generation  uint64
	precise     *domain.ViewportBounds
	coarse      *domain.ViewportBounds
	zoom        int
	textQuery   string
	loading     bool
	lastErr     error
	status      domain.SearchStatus
	results     []domain.Business
	index       *cluster.Index
	highlighted []string
	listeners   []func(ViewportSnapshot)

	deliverMu sync.Mutex
	delivered uint64
}

// NewViewportController creates a controller that queries through search.
func NewViewportController(search Searcher, cfg ViewportConfig, opts ...ControllerOption) *ViewportController {
	c := &ViewportController{
		cfg:     cfg,
		search:  search,
		ranking: NewRankingService(),
		logger:  slog.Default(),
		parent:  context.Background(),
		index:   cluster.New(cfg.Cluster),
	}
	for _, o := range opts {
		o(c)
	}
	if c.cfg.PageSize <= 0 {
		c.cfg.PageSize = DefaultViewportConfig().PageSize
	}
	if c.cfg.MaxPages <= 0 {
		c.cfg.MaxPages = DefaultViewportConfig().MaxPages
	}
	c.ctx, c.cancel = context.WithCancel(c.parent)
	c.debounce = NewDebouncer(cfg.Debounce)
	return c
}

// OnChange registers fn to be called with a fresh snapshot after every state
// change. fn runs outside the controller lock but calls are serialised and
// in Seq order; a snapshot overtaken by a newer one is skipped. fn must not
// change controller state.
func (c *ViewportController) OnChange(fn func(ViewportSnapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Submit feeds a raw map event through the debouncer.
func (c *ViewportController) Submit(ev domain.ViewportChanged) {
	c.debounce.Trigger(func() {
		if err := c.OnViewportChanged(ev); err != nil && !errors.Is(err, domain.ErrControllerClosed) {
			c.logger.Debug("viewport event rejected", "error", err)
		}
	})
}

// Attach routes an engine's drag-end and zoom-end events through Submit.
func (c *ViewportController) Attach(e ports.MapEngine) {
	e.OnDragEnd(c.Submit)
	e.OnZoomEnd(c.Submit)
}

// OnViewportChanged applies a settled viewport. Malformed bounds are
// rejected and the previous state is kept.
func (c *ViewportController) OnViewportChanged(ev domain.ViewportChanged) error {
	if err := ev.Bounds.Validate(); err != nil {
		c.logger.Warn("rejecting viewport", "error", err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}

	v := ev.Bounds
	c.precise = &v
	if ev.Zoom != c.zoom {
		c.zoom = ev.Zoom
		c.index.Rezoom(c.zoom)
	}

	if reason, ok := c.fetchReasonLocked(v); ok {
		target := geospatial.Pad(v, c.cfg.BufferDegrees)
		if geospatial.Diagonal(target) > c.cfg.ExtendCapMiles {
			target = v
		}
		c.coarse = &target
		c.fetchLocked(reason)
	}

	c.notifyAndUnlock()
	return nil
}

// fetchReasonLocked decides whether v needs a new coarse fetch.
func (c *ViewportController) fetchReasonLocked(v domain.ViewportBounds) (string, bool) {
	if c.coarse == nil {
		return FetchInitial, true
	}
	if !c.coarse.Contains(v) {
		return FetchOutsideCoarse, true
	}
	oldRange := geospatial.Diagonal(*c.coarse)
	newRange := geospatial.Diagonal(v)
	if oldRange > c.cfg.MaxRangeMiles && newRange <= c.cfg.MaxRangeMiles {
		return FetchRangeTransition, true
	}
	return "", false
}

// SetTextQuery changes the name filter and refetches the current coarse bounds.
func (c *ViewportController) SetTextQuery(q string) error {
	q = strings.TrimSpace(q)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if q == c.textQuery {
		c.mu.Unlock()
		return nil
	}
	c.textQuery = q
	if c.coarse != nil {
		c.fetchLocked(FetchTextQuery)
	}
	c.notifyAndUnlock()
	return nil
}

// fetchLocked issues a query for the coarse bounds under a new generation.
func (c *ViewportController) fetchLocked(reason string) {
	c.generation++
	gen := c.generation
	metrics.ViewportFetches.WithLabelValues(reason).Inc()

	req, err := domain.NewSearchRequest(*c.coarse, c.textQuery, 1, c.cfg.PageSize)
	if err != nil {
		c.lastErr = err
		c.loading = false
		return
	}
	c.loading = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := c.fetchPages(gen, req)
		c.complete(gen, res, err)
	}()
}

// fetchPages walks req page by page until a short page, the page cap, or a
// newer generation, and returns the concatenated set as one result.
func (c *ViewportController) fetchPages(gen uint64, req domain.SearchRequest) (*domain.SearchResult, error) {
	all := []domain.Business{}
	status := domain.SearchNoMatches
	for {
		res, err := c.search.Execute(c.ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Status == domain.SearchOutOfRange {
			status = res.Status
			break
		}
		all = append(all, res.Businesses...)
		if !res.HasNextPage {
			break
		}
		if req.PageNumber >= c.cfg.MaxPages {
			c.logger.Warn("viewport result truncated",
				"generation", gen, "pages", req.PageNumber, "records", len(all))
			break
		}
		if !c.isCurrent(gen) {
			// complete drops it
			return nil, nil
		}
		req.PageNumber++
	}
	if len(all) > 0 {
		status = domain.SearchOK
	}
	return &domain.SearchResult{
		Businesses: all,
		Status:     status,
		PageNumber: 1,
		PageSize:   req.PageSize,
	}, nil
}

func (c *ViewportController) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.generation
}

func (c *ViewportController) complete(gen uint64, res *domain.SearchResult, err error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		metrics.StaleResponses.Inc()
		return
	}

	c.loading = false
	if err != nil {
		c.lastErr = err
		c.logger.Warn("viewport search failed, keeping previous results",
			"generation", gen, "error", err)
	} else {
		c.lastErr = nil
		c.status = res.Status
		c.results = res.Businesses
		c.index.Build(c.results, c.zoom)
	}
	c.notifyAndUnlock()
}

// notifyAndUnlock releases the lock and then informs listeners. Snapshots
// leave in the order their state was committed.
func (c *ViewportController) notifyAndUnlock() {
	c.seq++
	if len(c.listeners) == 0 {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	listeners := append([]func(ViewportSnapshot){}, c.listeners...)
	c.mu.Unlock()

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if snap.Seq <= c.delivered {
		return
	}
	c.delivered = snap.Seq
	for _, fn := range listeners {
		fn(snap)
	}
}

func (c *ViewportController) snapshotLocked() ViewportSnapshot {
	s := ViewportSnapshot{
		Seq:         c.seq,
		Generation:  c.generation,
		Zoom:        c.zoom,
		TextQuery:   c.textQuery,
		Loading:     c.loading,
		Status:      c.status,
		Results:     c.currentResultsLocked(),
		Clusters:    append([]domain.ClusterNode(nil), c.index.Clusters()...),
		Highlighted: append([]string(nil), c.highlighted...),
	}
	if c.precise != nil {
		p := *c.precise
		s.Precise = &p
	}
	if c.coarse != nil {
		cb := *c.coarse
		s.Coarse = &cb
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

// Snapshot returns the current observable state.
func (c *ViewportController) Snapshot() ViewportSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CurrentResults returns the last fetched set restricted to the precise
// viewport, nearest to its centre first.
func (c *ViewportController) CurrentResults() []domain.Business {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentResultsLocked()
}

func (c *ViewportController) currentResultsLocked() []domain.Business {
	if c.precise == nil {
		return []domain.Business{}
	}
	visible := make([]domain.Business, 0, len(c.results))
	for _, b := range c.results {
		if c.precise.ContainsPoint(b.Location) {
			visible = append(visible, b)
		}
	}
	return c.ranking.Rank(visible, c.precise.Center())
}

// IsLoading reports whether the latest issued query is still in flight.
func (c *ViewportController) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError is the error of the latest completed query, or nil.
func (c *ViewportController) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Status is the search status of the latest successful query.
func (c *ViewportController) Status() domain.SearchStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Bounds returns the precise and coarse bounds; either may be nil before the
// first viewport event.
func (c *ViewportController) Bounds() (precise, coarse *domain.ViewportBounds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.precise != nil {
		p := *c.precise
		precise = &p
	}
	if c.coarse != nil {
		cb := *c.coarse
		coarse = &cb
	}
	return precise, coarse
}

// SetHighlighted replaces the set of highlighted business IDs.
func (c *ViewportController) SetHighlighted(ids []string) {
	c.mu.Lock()
	c.highlighted = append([]string(nil), ids...)
	c.notifyAndUnlock()
}

// Highlighted returns the highlighted businesses that are in the current
// result set, nearest to the viewport centre first.
func (c *ViewportController) Highlighted() []domain.Business {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlightedLocked()
}

func (c *ViewportController) highlightedLocked() []domain.Business {
	if len(c.highlighted) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(c.highlighted))
	for _, id := range c.highlighted {
		want[id] = struct{}{}
	}
	var out []domain.Business
	for _, b := range c.results {
		if _, ok := want[b.ID]; ok {
			out = append(out, b)
		}
	}
	if c.precise == nil {
		return out
	}
	return c.ranking.Rank(out, c.precise.Center())
}

// Best picks the single business to focus: the nearest highlighted one if
// any are highlighted, otherwise the nearest visible one.
func (c *ViewportController) Best() (domain.Business, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.highlightedLocked(); len(h) > 0 {
		return h[0], true
	}
	visible := c.currentResultsLocked()
	if len(visible) == 0 {
		return domain.Business{}, false
	}
	return visible[0], true
}

// Clusters returns the marker clusters of the current result set.
func (c *ViewportController) Clusters() []domain.ClusterNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ClusterNode(nil), c.index.Clusters()...)
}

// ExpansionZoom is the zoom at which cluster id breaks apart.
func (c *ViewportController) ExpansionZoom(id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.ExpansionZoom(id)
}

// ResolveClick maps a click that missed every cluster to the nearest
// business within the click tolerance.
func (c *ViewportController) ResolveClick(at domain.Coordinate) (domain.Business, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.ResolveClick(at)
}

// Lookup returns local geocoder suggestions from the current result set.
func (c *ViewportController) Lookup(query string) []domain.GeocodeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Lookup(query)
}

// Wait blocks until every issued fetch has returned.
func (c *ViewportController) Wait() {
	c.wg.Wait()
}

// Close tears the controller down. Pending debounced events are dropped and
// in-flight responses are discarded when they arrive.
func (c *ViewportController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.listeners = nil
	c.mu.Unlock()

	c.debounce.Stop()
	c.cancel()
}
