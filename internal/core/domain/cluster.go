package domain

// ClusterNode is one rendered marker: either a single business or an
// aggregate of several nearby ones at the current zoom.
type ClusterNode struct {
	ID        string     `json:"id"`
	Center    Coordinate `json:"center"`
	MemberIDs []string   `json:"member_ids"`
	Count     int        `json:"count"`
	Radius    float64    `json:"radius"` // miles from Center to the farthest member
}

// IsCluster reports whether the node aggregates more than one business.
func (n ClusterNode) IsCluster() bool {
	return n.Count > 1
}

// ViewportChanged is emitted by the map after a pan or zoom settles.
type ViewportChanged struct {
	Bounds ViewportBounds `json:"bounds"`
	Zoom   int            `json:"zoom"`
}
