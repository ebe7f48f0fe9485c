package cluster

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON renders the current nodes as a FeatureCollection shaped like a
// map-engine cluster source: aggregates carry cluster, cluster_id and
// point_count; single points carry their business id and name.
func (ix *Index) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	names := make(map[string]string, len(ix.points))
	for _, p := range ix.points {
		names[p.ID] = p.Name
	}

	for _, n := range ix.nodes {
		f := geojson.NewFeature(orb.Point{n.Center.Longitude, n.Center.Latitude})
		f.ID = n.ID
		if n.IsCluster() {
			f.Properties["cluster"] = true
			f.Properties["cluster_id"] = n.ID
			f.Properties["point_count"] = n.Count
			f.Properties["radius_miles"] = n.Radius
		} else {
			f.Properties["cluster"] = false
			f.Properties["id"] = n.ID
			f.Properties["name"] = names[n.ID]
		}
		fc.Append(f)
	}
	return fc
}
