package domain

import (
	"regexp"
	"strings"
	"time"
)

// CatalogItem is a playable track supplied by the catalog provider
type CatalogItem struct {
	ID         string        `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Artist     string        `json:"artist" yaml:"artist"`
	Popularity int           `json:"popularity" yaml:"popularity"`
	URI        string        `json:"uri" yaml:"uri"`
	ImageURL   string        `json:"imageUrl,omitempty" yaml:"imageUrl"`
	Duration   time.Duration `json:"durationMs" yaml:"duration"`
}

// Category is a selectable music category
type Category struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

var (
	parenthesised = regexp.MustCompile(`\s*\(.*?\)\s*`)
	bracketed     = regexp.MustCompile(`\s*\[.*?\]\s*`)
	featuring     = regexp.MustCompile(`(?i)\s*-\s*(feat|ft|featuring)\.?.*$`)
	remastered    = regexp.MustCompile(`(?i)\s*-\s*(remix|remaster|remastered).*$`)
)

// CleanName strips decorations from a track name that would make a title
// question too easy: parenthesised or bracketed text, featured artists and
// remix/remaster suffixes.
func (c CatalogItem) CleanName() string {
	name := c.Name
	name = parenthesised.ReplaceAllString(name, " ")
	name = bracketed.ReplaceAllString(name, " ")
	name = featuring.ReplaceAllString(name, "")
	name = remastered.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return strings.TrimSpace(c.Name)
	}
	return name
}

// MainArtist returns the artist name or a placeholder when missing
func (c CatalogItem) MainArtist() string {
	if strings.TrimSpace(c.Artist) == "" {
		return "Unknown Artist"
	}
	return c.Artist
}

// TrackInfo is the revealed metadata of a round's track
type TrackInfo struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	ImageURL string `json:"imageUrl,omitempty"`
	URI      string `json:"uri"`
}

// ToTrackInfo converts an item to its display metadata
func (c CatalogItem) ToTrackInfo() *TrackInfo {
	return &TrackInfo{
		Name:     c.Name,
		Artist:   c.MainArtist(),
		ImageURL: c.ImageURL,
		URI:      c.URI,
	}
}
