package matomo

import (
	"fmt"
	"regexp"
	"strings"
)

// pathFilter decides whether a request path is excluded from tracking. Exact
// matches are checked before patterns; patterns are evaluated in configured
// order.
type pathFilter struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// newPathFilter compiles the exclusion rules. A malformed pattern is a
// construction-time error, never a per-request one.
func newPathFilter(paths, patterns []string) (*pathFilter, error) {
	f := &pathFilter{
		exact: make(map[string]struct{}, len(paths)),
	}
	for _, p := range paths {
		f.exact[p] = struct{}{}
	}
	for _, expr := range patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", expr, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// isExcluded reports whether path matches an exact exclusion or any pattern.
func (f *pathFilter) isExcluded(path string) bool {
	if _, ok := f.exact[path]; ok {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// methodFilter decides whether a request method is eligible for tracking.
// A nil allowed set means all methods are allowed. Ignored methods take
// precedence over the allowed set.
type methodFilter struct {
	allowed map[string]struct{}
	ignored map[string]struct{}
}

func newMethodFilter(allowed, ignored []string) *methodFilter {
	f := &methodFilter{}
	if allowed != nil {
		f.allowed = make(map[string]struct{}, len(allowed))
		for _, m := range allowed {
			f.allowed[strings.ToUpper(m)] = struct{}{}
		}
	}
	if len(ignored) > 0 {
		f.ignored = make(map[string]struct{}, len(ignored))
		for _, m := range ignored {
			f.ignored[strings.ToUpper(m)] = struct{}{}
		}
	}
	return f
}

// isEligible reports whether a request with the given method should be
// tracked. Comparison is case-normalized.
func (f *methodFilter) isEligible(method string) bool {
	m := strings.ToUpper(method)
	if _, ok := f.ignored[m]; ok {
		return false
	}
	if f.allowed == nil {
		return true
	}
	_, ok := f.allowed[m]
	return ok
}
