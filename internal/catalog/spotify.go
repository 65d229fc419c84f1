package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"songquiz/internal/domain"
)

const (
	// DefaultAPIBaseURL is the Spotify Web API root
	DefaultAPIBaseURL = "https://api.spotify.com"

	maxSearchLimit  = 50
	maxRandomOffset = 200
)

// SpotifyOptions configures the Spotify provider
type SpotifyOptions struct {
	BaseURL    string
	Market     string
	Timeout    time.Duration
	QueryPause time.Duration
	Clock      clockwork.Clock
	Logger     zerolog.Logger
}

// Spotify is a Provider backed by the Spotify search API
type Spotify struct {
	tokens  TokenSource
	curated *Curated
	client  *http.Client
	baseURL string
	market  string
	pause   time.Duration
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// NewSpotify creates a Spotify provider
func NewSpotify(tokens TokenSource, curated *Curated, opts SpotifyOptions) *Spotify {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBaseURL
	}
	if opts.Market == "" {
		opts.Market = "US"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Spotify{
		tokens:  tokens,
		curated: curated,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: opts.BaseURL,
		market:  opts.Market,
		pause:   opts.QueryPause,
		clock:   opts.Clock,
		logger:  opts.Logger.With().Str("component", "spotify").Logger(),
	}
}

// Categories returns the curated category list
func (s *Spotify) Categories(ctx context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, len(s.curated.Categories))
	copy(out, s.curated.Categories)
	return out, nil
}

// Items searches tracks for a category. The mixed category uses one random
// general query; other categories run up to three queries built from the
// category name, pausing between requests.
func (s *Spotify) Items(ctx context.Context, categoryID string, count int) ([]domain.CatalogItem, error) {
	if count <= 0 || count > maxSearchLimit {
		count = maxSearchLimit
	}

	var queries []string
	if categoryID == MixedCategory {
		queries = []string{s.curated.MixedQueries[rand.Intn(len(s.curated.MixedQueries))]}
	} else {
		category, ok := FindCategory(s.curated.Categories, categoryID)
		if !ok {
			category = domain.Category{ID: categoryID, Name: categoryID}
		}
		queries = CategoryQueries(SearchName(category))
	}

	perQuery := (count + len(queries) - 1) / len(queries)
	seen := make(map[string]bool)
	items := make([]domain.CatalogItem, 0, count)

	for i, q := range queries {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.clock.After(s.pause):
			}
		}

		found, err := s.search(ctx, q, perQuery)
		if err != nil {
			return nil, err
		}

		kept := 0
		for _, item := range found {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			if item.Popularity <= MinPopularity {
				continue
			}
			items = append(items, item)
			kept++
		}

		s.logger.Debug().
			Str("category", categoryID).
			Str("query", q).
			Int("found", len(found)).
			Int("kept", kept).
			Msg("catalog search")
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no tracks found for category %q", domain.ErrCatalogUnavailable, categoryID)
	}
	return items, nil
}

type searchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL    string `json:"url"`
			Height int    `json:"height"`
			Width  int    `json:"width"`
		} `json:"images"`
	} `json:"album"`
	Popularity int `json:"popularity"`
	DurationMs int `json:"duration_ms"`
}

func (t spotifyTrack) toItem() domain.CatalogItem {
	item := domain.CatalogItem{
		ID:         t.ID,
		Name:       t.Name,
		Popularity: t.Popularity,
		URI:        t.URI,
		Duration:   time.Duration(t.DurationMs) * time.Millisecond,
	}
	if len(t.Artists) > 0 {
		item.Artist = t.Artists[0].Name
	}

	// pick the largest album image
	best := 0
	for _, img := range t.Album.Images {
		if area := img.Width * img.Height; area >= best {
			best = area
			item.ImageURL = img.URL
		}
	}
	return item
}

// search runs one track search at a random offset
func (s *Spotify) search(ctx context.Context, query string, limit int) ([]domain.CatalogItem, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(rand.Intn(maxRandomOffset)))
	params.Set("market", s.market)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search request: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: search returned status %d: %s", domain.ErrCatalogUnavailable, resp.StatusCode, string(body))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %v", domain.ErrCatalogUnavailable, err)
	}

	items := make([]domain.CatalogItem, 0, len(decoded.Tracks.Items))
	for _, t := range decoded.Tracks.Items {
		items = append(items, t.toItem())
	}
	return items, nil
}
