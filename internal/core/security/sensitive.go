package security

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// MaskChar replaces redacted characters.
const MaskChar = '*'

// previewKeep is how many leading characters of a match stay visible.
const previewKeep = 4

// Span is a half-open byte range [Start, End) of a match.
type Span struct {
	Start int
	End   int
}

// Matcher finds one kind of sensitive value in text.
type Matcher interface {
	Kind() string
	Scan(text string) []Span
}

// RegexMatcher is a Matcher backed by a regular expression.
type RegexMatcher struct {
	kind string
	re   *regexp.Regexp
}

// NewRegexMatcher compiles pattern into a named matcher.
func NewRegexMatcher(kind, pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{kind: kind, re: re}, nil
}

func mustRegexMatcher(kind, pattern string) *RegexMatcher {
	m, err := NewRegexMatcher(kind, pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *RegexMatcher) Kind() string { return m.kind }

func (m *RegexMatcher) Scan(text string) []Span {
	locs := m.re.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
	}
	return spans
}

// DefaultMatchers returns the built-in secret and PII matchers.
func DefaultMatchers() []Matcher {
	return []Matcher{
		// API keys
		mustRegexMatcher("groq_key", `gsk_[a-zA-Z0-9]{40,}`),
		mustRegexMatcher("openai_key", `sk-(?:proj-)?[a-zA-Z0-9\-_]{20,}`),
		mustRegexMatcher("anthropic_key", `sk-ant-[a-zA-Z0-9\-_]{40,}`),
		mustRegexMatcher("github_token", `\bgh[pousr]_[A-Za-z0-9]{36,}`),
		mustRegexMatcher("aws_access_key", `\bAKIA[0-9A-Z]{16}\b`),
		mustRegexMatcher("private_key", `-----BEGIN [A-Z ]*PRIVATE KEY-----`),
		mustRegexMatcher("api_key", `(?i)(?:api[_-]?key|apikey|token|bearer|auth)[=:\s]["']?[a-zA-Z0-9_\-]{20,}`),

		// Passwords
		mustRegexMatcher("password", `(?i)(?:password|passwd|pwd|secret|senha)[=:\s]["']?[^\s"']{4,}`),

		// Payment cards
		mustRegexMatcher("credit_card", `\b(?:\d{4}[- ]?){3}\d{4}\b`),
		mustRegexMatcher("cvv", `(?i)\b(?:cvv|cvc|cv2)[=:\s]?\d{3,4}\b`),

		// Personal data
		mustRegexMatcher("national_id", `\b\d{9}\b`),
		mustRegexMatcher("iban", `\b[A-Z]{2}\d{2}[A-Z0-9]{4,30}\b`),
		mustRegexMatcher("phone", `(?:\+351|00351)?9[1236]\d{7}`),
		mustRegexMatcher("citizen_card", `(?i)\b\d{8}[- ]?\d[- ]?[A-Z]{2}\d\b`),
		mustRegexMatcher("email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	}
}

// SensitiveMatch summarizes the matches of one kind. It never carries the raw value.
type SensitiveMatch struct {
	Kind          string `json:"kind"`
	Count         int    `json:"count"`
	MaskedPreview string `json:"masked_preview"`
}

// Detection is the result of scanning text.
type Detection struct {
	HasSensitive bool
	Matches      []SensitiveMatch
}

// Kinds lists the detected kinds in registry order.
func (d Detection) Kinds() []string {
	kinds := make([]string, 0, len(d.Matches))
	for _, m := range d.Matches {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

// Scanner detects and masks sensitive values using a registry of matchers.
type Scanner struct {
	mu       sync.RWMutex
	matchers []Matcher
}

// NewScanner creates a scanner with the given matchers, or the defaults when none are given.
func NewScanner(matchers ...Matcher) *Scanner {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Scanner{matchers: matchers}
}

// Register adds a matcher to the registry.
func (s *Scanner) Register(m Matcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchers = append(s.matchers, m)
}

func (s *Scanner) snapshot() []Matcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchers
}

// Detect reports which kinds of sensitive data text contains.
func (s *Scanner) Detect(text string) Detection {
	var d Detection
	if text == "" {
		return d
	}
	for _, m := range s.snapshot() {
		spans := m.Scan(text)
		if len(spans) == 0 {
			continue
		}
		first := spans[0]
		d.Matches = append(d.Matches, SensitiveMatch{
			Kind:          m.Kind(),
			Count:         len(spans),
			MaskedPreview: MaskValue(text[first.Start:first.End]),
		})
	}
	d.HasSensitive = len(d.Matches) > 0
	return d
}

// Mask redacts every match of every matcher, repeating until nothing
// changes. Masked runs create new word boundaries that can expose fresh
// matches, so a single pass is not idempotent. Each pass only turns
// characters into MaskChar, which bounds the loop by the text length.
func (s *Scanner) Mask(text string) string {
	matchers := s.snapshot()
	for {
		next := maskOnce(matchers, text)
		if next == text {
			return text
		}
		text = next
	}
}

// maskOnce scans text with every matcher; overlapping spans are merged
// and masked once.
func maskOnce(matchers []Matcher, text string) string {
	if text == "" {
		return text
	}
	var spans []Span
	for _, m := range matchers {
		spans = append(spans, m.Scan(text)...)
	}
	if len(spans) == 0 {
		return text
	}
	spans = mergeSpans(spans)

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp.Start])
		b.WriteString(MaskValue(text[sp.Start:sp.End]))
		last = sp.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// MaskValue keeps the first few characters of v and masks the rest,
// preserving its length in characters.
func MaskValue(v string) string {
	runes := []rune(v)
	keep := previewKeep
	if len(runes) <= previewKeep {
		keep = 0
	}
	out := make([]rune, len(runes))
	for i, r := range runes {
		if i < keep {
			out[i] = r
		} else {
			out[i] = MaskChar
		}
	}
	return string(out)
}

func mergeSpans(spans []Span) []Span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start == spans[j].Start {
			return spans[i].End > spans[j].End
		}
		return spans[i].Start < spans[j].Start
	})
	merged := []Span{spans[0]}
	for _, sp := range spans[1:] {
		cur := &merged[len(merged)-1]
		if sp.Start < cur.End {
			if sp.End > cur.End {
				cur.End = sp.End
			}
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}
