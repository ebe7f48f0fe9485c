package domain

import (
	"strings"
	"time"
)

// Business is a directory entry as read from the backing store. The core only
// ever holds read-only copies.
type Business struct {
	ID            string     `json:"id"`
	ExternalID    string     `json:"external_id,omitempty"`
	Source        string     `json:"source,omitempty"`
	Name          string     `json:"name"`
	Address       string     `json:"address,omitempty"`
	City          string     `json:"city,omitempty"`
	Country       string     `json:"country,omitempty"`
	Email         string     `json:"email,omitempty"`
	Website       string     `json:"website,omitempty"`
	SecondaryURL  string     `json:"secondary_url,omitempty"`
	Logo          string     `json:"logo,omitempty"`
	Images        []string   `json:"images,omitempty"`
	Industry      string     `json:"industry,omitempty"`
	Description   string     `json:"description,omitempty"`
	Location      Coordinate `json:"location"`
	ClickCount    *int       `json:"click_count,omitempty"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	Distance      *float64   `json:"distance,omitempty"` // computed field, miles
}

// SearchableText is the text matched by substring queries.
func (b Business) SearchableText() string {
	return strings.ToLower(b.Name)
}

// BusinessClicked is published whenever a click is recorded.
type BusinessClicked struct {
	BusinessID string    `json:"business_id"`
	ClickCount int       `json:"click_count"`
	ClickedAt  time.Time `json:"clicked_at"`
}

// DirectoryStats is the display aggregate shown alongside the map.
type DirectoryStats struct {
	TotalBusinesses int64     `json:"total_businesses"`
	RefreshedAt     time.Time `json:"refreshed_at"`
}

// GeocodeSource distinguishes local directory hits from external geocoder hits.
type GeocodeSource string

const (
	GeocodeLocal    GeocodeSource = "local"
	GeocodeExternal GeocodeSource = "external"
)

// GeocodeResult is one autocomplete suggestion.
type GeocodeResult struct {
	Title      string        `json:"title"`
	Address    string        `json:"address,omitempty"`
	Coordinate Coordinate    `json:"coordinate"`
	Source     GeocodeSource `json:"source"`
	BusinessID string        `json:"business_id,omitempty"`
}
