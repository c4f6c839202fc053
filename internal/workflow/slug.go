package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/alexcabrera/kybflow/internal/db"
)

const (
	maxSlugLen   = 50
	fallbackSlug = "workflow"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of characters outside
// [a-z0-9] into one hyphen, trims hyphens at both ends, and cuts the result
// to 50 bytes. A name with no usable characters yields "workflow".
func Slugify(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// uniqueSlug returns the slug of name, suffixed -1, -2, ... until no row
// other than excludeID holds it.
func uniqueSlug(ctx context.Context, q *db.Queries, name, excludeID string) (string, error) {
	base := Slugify(name)
	slug := base
	for i := 1; ; i++ {
		taken, err := q.SlugTaken(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
