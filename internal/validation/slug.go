package validation

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

const maxSlugLen = 120

var reservedSlugs = map[string]struct{}{
	"slug":   {},
	"search": {},
	"new":    {},
	"me":     {},
}

// PodSlug derives the base URL slug for a pod from its club name and title.
func PodSlug(clubName, title string) string {
	s := slug.Make(strings.TrimSpace(clubName + " " + title))
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "pod"
	}
	if _, reserved := reservedSlugs[s]; reserved {
		s += "-pod"
	}
	return s
}

// SlugCandidate returns base for n <= 1 and base-n otherwise.
func SlugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
