package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"songquiz/internal/domain"
)

//go:embed categories.yaml
var curatedYAML []byte

// Curated is the built-in category list and search vocabulary
type Curated struct {
	Categories   []domain.Category `yaml:"categories"`
	MixedQueries []string          `yaml:"mixedQueries"`
}

// LoadCurated parses the embedded category list
func LoadCurated() (*Curated, error) {
	var c Curated
	if err := yaml.Unmarshal(curatedYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse curated categories: %w", err)
	}
	if len(c.Categories) == 0 || len(c.MixedQueries) == 0 {
		return nil, fmt.Errorf("curated categories are empty")
	}
	return &c, nil
}

var leadingSymbols = regexp.MustCompile(`^[^\p{L}\p{N}\s]+\s*`)

// SearchName strips the decorative prefix from a category name
func SearchName(c domain.Category) string {
	name := leadingSymbols.ReplaceAllString(c.Name, "")
	name = strings.TrimSpace(name)
	if name == "" {
		return c.ID
	}
	return name
}

var keywordSplit = regexp.MustCompile(`[\s\-&]+`)

// CategoryQueries builds at most three search queries for a named category:
// a genre filter on the full name, the plain name, then per-keyword genre
// filters for keywords longer than three characters.
func CategoryQueries(name string) []string {
	lower := strings.ToLower(name)
	queries := []string{
		fmt.Sprintf("genre:%q", lower),
		lower,
	}
	for _, kw := range keywordSplit.Split(lower, -1) {
		if len(kw) > 3 {
			queries = append(queries, fmt.Sprintf("genre:%q", kw))
		}
	}
	if len(queries) > 3 {
		queries = queries[:3]
	}
	return queries
}
