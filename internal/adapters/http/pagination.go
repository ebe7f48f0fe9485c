package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// PaginatedResponse wraps a listing page with its offset window.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination is the offset window of the deprecated full listing.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// linkTo renders the current request URL with some query parameters
// replaced, so viewport bounds and the text filter survive in page links.
func linkTo(c *fiber.Ctx, rel string, set ...string) string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	c.Request().URI().QueryArgs().CopyTo(args)
	for i := 0; i+1 < len(set); i += 2 {
		args.Set(set[i], set[i+1])
	}
	return "<" + c.Path() + "?" + args.String() + `>; rel="` + rel + `"`
}

// SetSearchLinks appends first/prev/next links for a viewport search page.
// There is no last link: searches never count the full match set, so next
// is offered whenever the page came back full.
func SetSearchLinks(c *fiber.Ctx, res *domain.SearchResult) {
	size := strconv.Itoa(res.PageSize)
	links := []string{linkTo(c, "first", "page", "1", "page_size", size)}
	if res.PageNumber > 1 {
		links = append(links, linkTo(c, "prev", "page", strconv.Itoa(res.PageNumber-1), "page_size", size))
	}
	if res.HasNextPage {
		links = append(links, linkTo(c, "next", "page", strconv.Itoa(res.PageNumber+1), "page_size", size))
	}
	c.Append(fiber.HeaderLink, links...)
}

// SetLinkHeaders appends offset-based first/prev/next/last links for the
// listing. Existing Link values, such as a successor-version, are kept.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	window := func(rel string, offset int) string {
		return linkTo(c, rel, "offset", strconv.Itoa(offset), "limit", strconv.Itoa(p.Limit))
	}

	links := []string{window("first", 0)}
	if p.Offset > 0 {
		links = append(links, window("prev", max(p.Offset-p.Limit, 0)))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, window("next", p.Offset+p.Limit))
	}
	links = append(links, window("last", max(p.Total-p.Limit, 0)))

	c.Append(fiber.HeaderLink, links...)
}
