package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSlugBase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"punctuation dropped", "Classic Oxford!!", "classic-oxford"},
		{"runs collapse", "  Air   --  Max  ", "air-max"},
		{"digits kept", "Runner 2000", "runner-2000"},
		{"non latin dropped", "حذاء Leather", "leather"},
		{"edge hyphens trimmed", "-Air Max!-", "air-max"},
		{"nothing left", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SlugBase(tt.in))
		})
	}
}

func TestSlugify(t *testing.T) {
	at := time.UnixMilli(1714557600123)

	assert.Equal(t, "classic-oxford-1714557600123", Slugify("Classic Oxford!!", at))
	assert.Equal(t, "product-1714557600123", Slugify("حذاء", at))
	assert.NotEqual(t, Slugify("Same", at), Slugify("Same", at.Add(time.Millisecond)))
}

// Feature: catalog-admin, Property 2: Slugs are URL safe and stable
func TestProperty_SlugBase(t *testing.T) {
	safe := regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*)?$`)
	properties := gopter.NewProperties(nil)

	properties.Property("slug base is url safe", prop.ForAll(
		func(name string) bool {
			return safe.MatchString(SlugBase(name))
		},
		gen.AnyString(),
	))

	properties.Property("slug base is idempotent", prop.ForAll(
		func(name string) bool {
			once := SlugBase(name)
			return SlugBase(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
