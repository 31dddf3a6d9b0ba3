package schema

import (
	"errors"
	"fmt"

	"github.com/agext/levenshtein"
)

var (
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownOperator = errors.New("unknown operator")
)

// LookupError reports a key missing from the registry. Kind is one of the
// sentinel errors above so callers can use errors.Is.
type LookupError struct {
	Kind       error
	Key        string
	Suggestion string // "did you mean 'status'?" or ""
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%v '%s'", e.Kind, e.Key)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Kind }

// suggestFrom finds the closest candidate within maxDist edits.
func suggestFrom(input string, candidates []string, maxDist int) string {
	best := ""
	bestDist := maxDist + 1
	for _, c := range candidates {
		if d := levenshtein.Distance(input, c, nil); d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist <= maxDist {
		return fmt.Sprintf("did you mean '%s'?", best)
	}
	return ""
}
