package validation

import (
	"fmt"
	"strconv"
	"strings"

	"quizee-service/internal/domain"
)

// Result is nil when a path is valid, otherwise it holds exactly one entry
// keyed by the error type.
type Result map[string]bool

// Valid reports whether r represents "no error".
func (r Result) Valid() bool {
	return len(r) == 0
}

// Matcher decides whether an error label belongs to a field path.
type Matcher int

const (
	// PrefixMatch is a literal string-prefix test: "answers[1]" also matches
	// "answers[10]".
	PrefixMatch Matcher = iota
	// SegmentMatch requires the prefix to end on a path boundary.
	SegmentMatch
)

// ParseMatcher accepts "prefix" and "segment"; empty means prefix.
func ParseMatcher(raw string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "prefix":
		return PrefixMatch, nil
	case "segment":
		return SegmentMatch, nil
	default:
		return PrefixMatch, fmt.Errorf("unknown match mode %q", raw)
	}
}

func (m Matcher) String() string {
	if m == SegmentMatch {
		return "segment"
	}
	return "prefix"
}

func (m Matcher) Match(label, path string) bool {
	if !strings.HasPrefix(label, path) {
		return false
	}
	if m == PrefixMatch || len(label) == len(path) || path == "" {
		return true
	}
	next := label[len(path)]
	return next == '.' || next == '['
}

// Filter returns the first error (in list order) whose label matches path.
// Errors without a context never match.
func (m Matcher) Filter(errs []domain.ValidationError, path string) Result {
	for _, e := range errs {
		if e.Context == nil {
			continue
		}
		if m.Match(e.Context.Label, path) {
			return Result{e.Type: true}
		}
	}
	return nil
}

// FilterErrors applies the literal prefix rule.
func FilterErrors(errs []domain.ValidationError, path string) Result {
	return PrefixMatch.Filter(errs, path)
}

// Scope names which per-question array a path addresses.
type Scope string

const (
	QuestionScope Scope = "question"
	AnswerScope   Scope = "answer"
)

// ScopeOf classifies a per-question path. Anything not starting with the
// question or answer token is a usage error.
func ScopeOf(path string) (Scope, string, error) {
	for _, scope := range []Scope{QuestionScope, AnswerScope} {
		token := string(scope)
		if !strings.HasPrefix(path, token) {
			continue
		}
		rest := path[len(token):]
		if rest == "" || rest[0] == '.' || rest[0] == '[' {
			return scope, rest, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
}

// ScopedLabel maps a per-question path onto the document label, e.g.
// (2, "question.caption") -> "questions[2].caption".
func ScopedLabel(index int, path string) (string, error) {
	scope, rest, err := ScopeOf(path)
	if err != nil {
		return "", err
	}
	return string(scope) + "s[" + strconv.Itoa(index) + "]" + rest, nil
}
