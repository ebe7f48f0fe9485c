package cluster

import "math"

// project maps a coordinate to web-mercator pixel space for a world of the
// given size (tileSize * 2^zoom).
func project(lat, lng, worldSize float64) (x, y float64) {
	x = (lng/360 + 0.5) * worldSize

	sin := math.Sin(lat * math.Pi / 180)
	y = (0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi) * worldSize
	switch {
	case math.IsNaN(y) || y < 0:
		y = 0
	case y > worldSize:
		y = worldSize
	}
	return x, y
}

func worldSize(tileSize float64, zoom int) float64 {
	return tileSize * math.Pow(2, float64(zoom))
}
