package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapse = regexp.MustCompile(`[\s-]+`)
)

// SlugBase lowercases name, drops characters outside [a-z0-9\s-] and collapses
// runs of whitespace and hyphens into one hyphen. Leading and trailing hyphens
// are trimmed.
func SlugBase(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Slugify appends the millisecond timestamp to the base so two products with
// the same name get different slugs. A name with nothing slug-safe in it uses
// "product" as the base.
func Slugify(name string, at time.Time) string {
	base := SlugBase(name)
	if base == "" {
		base = "product"
	}
	return base + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}
