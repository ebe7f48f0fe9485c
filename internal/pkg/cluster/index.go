// Package cluster groups a point set into zoom-dependent marker clusters and
// resolves map clicks back to individual businesses.
//
// An Index is rebuilt wholesale on every point-set or zoom change and is not
// safe for concurrent use.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	pointTol    = 1e-9
)

// Options tune clustering and click resolution.
type Options struct {
	Radius              float64 // merge distance in screen pixels
	MinZoom             int
	MaxZoom             int // no merging above this zoom
	TileSize            float64
	ClickToleranceMiles float64
}

// DefaultOptions mirror the map client's cluster layer.
func DefaultOptions() Options {
	return Options{
		Radius:              50,
		MinZoom:             0,
		MaxZoom:             11,
		TileSize:            256,
		ClickToleranceMiles: 0.25,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.TileSize <= 0 {
		o.TileSize = d.TileSize
	}
	if o.MaxZoom < o.MinZoom {
		o.MaxZoom = o.MinZoom
	}
	if o.ClickToleranceMiles <= 0 {
		o.ClickToleranceMiles = d.ClickToleranceMiles
	}
	return o
}

// State is the lifecycle of an Index.
type State int

const (
	StateEmpty State = iota
	StateBuilt
)

func (s State) String() string {
	if s == StateBuilt {
		return "built"
	}
	return "empty"
}

// geoItem indexes a business by its coordinate for click resolution.
type geoItem struct {
	idx  int
	rect *rtreego.Rect
}

func (g *geoItem) Bounds() *rtreego.Rect { return g.rect }

// pixelItem indexes a projected point during a build.
type pixelItem struct {
	idx  int
	x, y float64
	rect *rtreego.Rect
}

func (p *pixelItem) Bounds() *rtreego.Rect { return p.rect }

// Index holds the clusters of one point set at one zoom level.
type Index struct {
	opts   Options
	state  State
	zoom   int
	points []domain.Business
	nodes  []domain.ClusterNode
	byID   map[string]int
	geo    *rtreego.Rtree
}

// New returns an empty index.
func New(opts Options) *Index {
	return &Index{opts: opts.normalized(), byID: map[string]int{}}
}

// State reports whether the index has been built.
func (ix *Index) State() State { return ix.state }

// Zoom is the zoom level of the last build.
func (ix *Index) Zoom() int { return ix.zoom }

// Len is the number of indexed points.
func (ix *Index) Len() int { return len(ix.points) }

// Build replaces the index contents with points clustered at zoom.
func (ix *Index) Build(points []domain.Business, zoom int) {
	ix.points = append(ix.points[:0:0], points...)
	ix.zoom = zoom

	ix.geo = rtreego.NewTree(dimensions, minChildren, maxChildren)
	for i, p := range ix.points {
		pt := rtreego.Point{p.Location.Latitude, p.Location.Longitude}
		ix.geo.Insert(&geoItem{idx: i, rect: pt.ToRect(pointTol)})
	}

	ix.nodes = ix.clusterAt(zoom)
	ix.byID = make(map[string]int, len(ix.nodes))
	for i, n := range ix.nodes {
		ix.byID[n.ID] = i
	}
	ix.state = StateBuilt
}

// Rezoom rebuilds the clusters of the current point set at a new zoom.
func (ix *Index) Rezoom(zoom int) {
	ix.Build(ix.points, zoom)
}

// clusterAt greedily merges points whose projected distance is below the
// radius. Each node is centred on its first member.
func (ix *Index) clusterAt(zoom int) []domain.ClusterNode {
	nodes := make([]domain.ClusterNode, 0, len(ix.points))
	if zoom > ix.opts.MaxZoom {
		for _, p := range ix.points {
			nodes = append(nodes, singleton(p))
		}
		return nodes
	}

	z := zoom
	if z < ix.opts.MinZoom {
		z = ix.opts.MinZoom
	}
	size := worldSize(ix.opts.TileSize, z)
	r := ix.opts.Radius

	items := make([]*pixelItem, len(ix.points))
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for i, p := range ix.points {
		x, y := project(p.Location.Latitude, p.Location.Longitude, size)
		it := &pixelItem{idx: i, x: x, y: y, rect: rtreego.Point{x, y}.ToRect(pointTol)}
		items[i] = it
		tree.Insert(it)
	}

	assigned := make([]bool, len(ix.points))
	for i, it := range items {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []int{i}

		query, err := rtreego.NewRect(rtreego.Point{it.x - r, it.y - r}, []float64{2 * r, 2 * r})
		if err == nil {
			var near []int
			for _, s := range tree.SearchIntersect(query) {
				cand := s.(*pixelItem)
				if assigned[cand.idx] {
					continue
				}
				if math.Hypot(cand.x-it.x, cand.y-it.y) < r {
					near = append(near, cand.idx)
				}
			}
			sort.Ints(near)
			for _, j := range near {
				assigned[j] = true
				members = append(members, j)
			}
		}

		if len(members) == 1 {
			nodes = append(nodes, singleton(ix.points[i]))
			continue
		}
		nodes = append(nodes, ix.aggregate(zoom, members))
	}
	return nodes
}

func singleton(p domain.Business) domain.ClusterNode {
	return domain.ClusterNode{
		ID:        p.ID,
		Center:    p.Location,
		MemberIDs: []string{p.ID},
		Count:     1,
	}
}

func (ix *Index) aggregate(zoom int, members []int) domain.ClusterNode {
	first := ix.points[members[0]]
	n := domain.ClusterNode{
		ID:        fmt.Sprintf("cluster:%d:%s", zoom, first.ID),
		Center:    first.Location,
		MemberIDs: make([]string, 0, len(members)),
		Count:     len(members),
	}
	for _, m := range members {
		p := ix.points[m]
		n.MemberIDs = append(n.MemberIDs, p.ID)
		if d := geospatial.Distance(n.Center, p.Location); d > n.Radius {
			n.Radius = d
		}
	}
	return n
}

// Clusters returns the nodes of the last build.
func (ix *Index) Clusters() []domain.ClusterNode {
	return ix.nodes
}

// Node looks up a node by ID.
func (ix *Index) Node(id string) (domain.ClusterNode, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return domain.ClusterNode{}, false
	}
	return ix.nodes[i], true
}

// Members returns the businesses aggregated by node id.
func (ix *Index) Members(id string) []domain.Business {
	n, ok := ix.Node(id)
	if !ok {
		return nil
	}
	want := make(map[string]struct{}, len(n.MemberIDs))
	for _, m := range n.MemberIDs {
		want[m] = struct{}{}
	}
	out := make([]domain.Business, 0, len(n.MemberIDs))
	for _, p := range ix.points {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ExpansionZoom returns the smallest zoom above the built one at which the
// members of node id no longer render as a single node. Past MaxZoom every
// point renders alone, so MaxZoom+1 is the upper bound.
func (ix *Index) ExpansionZoom(id string) (int, bool) {
	n, ok := ix.Node(id)
	if !ok {
		return 0, false
	}
	if !n.IsCluster() {
		return ix.zoom, true
	}
	for z := ix.zoom + 1; z <= ix.opts.MaxZoom; z++ {
		if !togetherAt(ix.clusterAt(z), n.MemberIDs) {
			return z, true
		}
	}
	return ix.opts.MaxZoom + 1, true
}

func togetherAt(nodes []domain.ClusterNode, ids []string) bool {
	first := ids[0]
	for _, n := range nodes {
		for _, m := range n.MemberIDs {
			if m != first {
				continue
			}
			if len(n.MemberIDs) < len(ids) {
				return false
			}
			set := make(map[string]struct{}, len(n.MemberIDs))
			for _, id := range n.MemberIDs {
				set[id] = struct{}{}
			}
			for _, id := range ids {
				if _, ok := set[id]; !ok {
					return false
				}
			}
			return true
		}
	}
	return false
}

// ResolveClick finds the business nearest to c within the click tolerance.
func (ix *Index) ResolveClick(c domain.Coordinate) (domain.Business, bool) {
	if ix.state != StateBuilt || len(ix.points) == 0 {
		return domain.Business{}, false
	}

	best, bestDist := -1, math.Inf(1)
	consider := func(i int) {
		d := geospatial.Distance(c, ix.points[i].Location)
		if d <= ix.opts.ClickToleranceMiles && d < bestDist {
			best, bestDist = i, d
		}
	}

	box := geospatial.BoundingBox(c, ix.opts.ClickToleranceMiles)
	query, err := rtreego.NewRect(
		rtreego.Point{box.MinLat, box.MinLong},
		[]float64{box.MaxLat - box.MinLat, box.MaxLong - box.MinLong},
	)
	if err != nil || box.CrossesAntimeridian() {
		for i := range ix.points {
			consider(i)
		}
	} else {
		hits := ix.geo.SearchIntersect(query)
		idx := make([]int, 0, len(hits))
		for _, s := range hits {
			idx = append(idx, s.(*geoItem).idx)
		}
		sort.Ints(idx)
		for _, i := range idx {
			consider(i)
		}
	}

	if best < 0 {
		return domain.Business{}, false
	}
	return ix.points[best], true
}

// Lookup returns every indexed business whose name contains query,
// case-insensitively, formatted as local geocoder suggestions.
func (ix *Index) Lookup(query string) []domain.GeocodeResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []domain.GeocodeResult
	for _, p := range ix.points {
		if !strings.Contains(p.SearchableText(), q) {
			continue
		}
		out = append(out, domain.GeocodeResult{
			Title:      p.Name,
			Address:    p.Address,
			Coordinate: p.Location,
			Source:     domain.GeocodeLocal,
			BusinessID: p.ID,
		})
	}
	return out
}
