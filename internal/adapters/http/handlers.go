package http

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
	"github.com/supportyourlocal/mapdir/internal/pkg/cluster"
	"github.com/supportyourlocal/mapdir/internal/pkg/geospatial"
)

// SearchBusinessesHandler runs a bounded search and ranks the page by
// distance from the viewport center.
// GET /v1/businesses/search?min_lat=&max_lat=&min_long=&max_long=&q=&page=&page_size=
func SearchBusinessesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := queryBounds(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		q, err := queryText(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		size := c.QueryInt("page_size", deps.Settings.DefaultPageSize)
		if size > deps.Settings.MaxPageSize {
			size = deps.Settings.MaxPageSize
		}

		req, err := domain.NewSearchRequest(bounds, q, c.QueryInt("page", 1), size)
		if err != nil {
			return errFromDomain(c, err)
		}
		res, err := deps.Search.Execute(c.UserContext(), req)
		if err != nil {
			return errFromDomain(c, err)
		}

		out := *res
		out.Businesses = deps.Ranking.Rank(res.Businesses, bounds.Center())
		c.Set("X-Search-Status", string(out.Status))
		SetSearchLinks(c, &out)
		return c.JSON(out)
	}
}

// BatchBusinessesHandler returns several businesses by id.
func BatchBusinessesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ids, err := queryIDs(c, 100)
		if err != nil {
			return errFromDomain(c, err)
		}
		businesses, err := deps.Businesses.GetByIDs(c.UserContext(), ids)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(businesses)
	}
}

// GetBusinessHandler returns a single business.
func GetBusinessHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Businesses.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(b)
	}
}

// RecordClickHandler bumps the click history of a business.
func RecordClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Businesses.RecordClick(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(b)
	}
}

// TopClicksHandler returns the most clicked businesses, optionally near a point.
// GET /v1/businesses/top-clicks?limit=10&lat=52.52&lng=13.40&radius_km=25
func TopClicksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		near, err := queryCoordinate(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		radius := c.QueryFloat("radius_km", deps.Settings.DefaultRadiusKm)

		out, err := deps.Businesses.TopClicks(c.UserContext(), c.QueryInt("limit", 10), near, radius)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(out)
	}
}

// RecentClicksHandler returns the most recently clicked businesses.
func RecentClicksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := deps.Businesses.RecentClicks(c.UserContext(), c.QueryInt("limit", 10))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(out)
	}
}

// ListBusinessesHandler pages through the whole directory. Superseded by
// SearchBusinessesHandler.
func ListBusinessesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", deps.Settings.DefaultPageSize)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > deps.Settings.MaxPageSize {
			limit = deps.Settings.DefaultPageSize
		}

		stats, err := deps.Businesses.Stats(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		businesses, err := deps.Businesses.List(c.UserContext(), offset, limit)
		if err != nil {
			return errFromDomain(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: int(stats.TotalBusinesses)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: businesses, Pagination: pg})
	}
}

// StatsHandler returns the cached directory aggregate.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Businesses.Stats(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// viewportIndex searches the viewport and clusters the first page of results
// at zoom. An out-of-range viewport yields an empty, built index.
func viewportIndex(ctx context.Context, deps *Dependencies, bounds domain.ViewportBounds, q string, zoom int) (*cluster.Index, domain.SearchStatus, error) {
	ix := cluster.New(deps.Settings.Viewport.Cluster)
	req, err := domain.NewSearchRequest(bounds, q, 1, deps.Settings.MaxPageSize)
	if err != nil {
		return nil, "", err
	}
	res, err := deps.Search.Execute(ctx, req)
	if err != nil {
		return nil, "", err
	}
	ix.Build(res.Businesses, zoom)
	return ix, res.Status, nil
}

// ClustersHandler returns the viewport's markers as a GeoJSON FeatureCollection.
// GET /v1/clusters?min_lat=&max_lat=&min_long=&max_long=&zoom=&q=
func ClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := queryBounds(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		zoom, err := queryZoom(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		q, err := queryText(c)
		if err != nil {
			return errFromDomain(c, err)
		}

		ix, status, err := viewportIndex(c.UserContext(), deps, bounds, q, zoom)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("X-Search-Status", string(status))
		if err := c.JSON(ix.GeoJSON()); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return nil
	}
}

// ExpansionZoomHandler returns the zoom at which a cluster splits apart.
func ExpansionZoomHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bounds, err := queryBounds(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		zoom, err := queryZoom(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		q, err := queryText(c)
		if err != nil {
			return errFromDomain(c, err)
		}

		ix, _, err := viewportIndex(c.UserContext(), deps, bounds, q, zoom)
		if err != nil {
			return errFromDomain(c, err)
		}
		id := c.Params("id")
		z, ok := ix.ExpansionZoom(id)
		if !ok {
			return errNotFound(c, "cluster not found")
		}
		return c.JSON(fiber.Map{"id": id, "zoom": z})
	}
}

// GeocodeHandler merges directory matches inside the optional viewport with
// external geocoder suggestions.
// GET /v1/geocode?q=bäckerei&min_lat=&max_lat=&min_long=&max_long=
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := queryText(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}

		var local usecases.LocalLookup
		if hasBounds(c) {
			bounds, err := queryBounds(c)
			if err != nil {
				return errFromDomain(c, err)
			}
			ix, _, err := viewportIndex(c.UserContext(), deps, bounds, "", deps.Settings.Viewport.Cluster.MaxZoom)
			if err != nil {
				return errFromDomain(c, err)
			}
			local = ix
		}

		geocode := deps.Geocode
		if geocode == nil {
			geocode = usecases.NewGeocodeService(nil)
		}
		return c.JSON(geocode.Forward(c.UserContext(), q, local))
	}
}

// InitialViewport is the map's first viewport.
type InitialViewport struct {
	Center     domain.Coordinate     `json:"center"`
	Bounds     domain.ViewportBounds `json:"bounds"`
	Source     string                `json:"source"` // geoip or default
	AccuracyKm float64               `json:"accuracy_km,omitempty"`
}

// InitialViewportHandler centers the first viewport on the caller's
// approximate location, falling back to the configured default region.
func InitialViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		radius := c.QueryFloat("radius_km", deps.Settings.DefaultRadiusKm)
		if radius <= 0 || radius > 1000 {
			return errBadRequest(c, "radius_km must be between 0 and 1000")
		}

		vp := InitialViewport{Center: deps.Settings.DefaultCenter, Source: "default"}
		if deps.Locator != nil {
			if ip := net.ParseIP(c.IP()); ip != nil {
				if pt, acc, err := deps.Locator.Locate(ip); err == nil {
					vp.Center, vp.Source, vp.AccuracyKm = pt, "geoip", acc
				}
			}
		}
		vp.Bounds = geospatial.BoundingBoxKm(vp.Center, radius)

		c.Set("Cache-Control", "private, max-age=300")
		return c.JSON(vp)
	}
}
