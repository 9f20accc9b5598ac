package xslt

import (
	"fmt"
	"slices"

	"github.com/sahilm/fuzzy"
)

// errorWithHint wraps err for the unresolved name, suggesting the closest
// candidate when there is one.
func errorWithHint(name string, err error, candidates []string) error {
	if hint := suggest(name, candidates); hint != "" {
		return fmt.Errorf("%s: %w (did you mean %s?)", name, err, hint)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func suggest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	slices.Sort(candidates)
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
