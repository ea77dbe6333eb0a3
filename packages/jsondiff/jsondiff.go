package jsondiff

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/hitmatch/packages/pattern"
)

type Kind int

const (
	KindValueMismatch Kind = iota
	KindTypeMismatch
	KindPatternMismatch
	KindMissingField
	KindExtraField
	KindMissingElement
	KindExtraElement
)

func (k Kind) String() string {
	switch k {
	case KindValueMismatch:
		return "value-mismatch"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindPatternMismatch:
		return "pattern-mismatch"
	case KindMissingField:
		return "missing-field"
	case KindExtraField:
		return "extra-field"
	case KindMissingElement:
		return "missing-element"
	case KindExtraElement:
		return "extra-element"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for c := Kind(0); c <= KindExtraElement; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return microerror.Maskf(unknownKindError, "%q", text)
}

// Difference is one located discrepancy. Expected and Actual hold compact
// raw JSON and are empty when the node does not exist on that side. For
// missing elements ActualPath is the enclosing array, for extra elements
// ExpectedPath is.
type Difference struct {
	Kind         Kind   `json:"kind"`
	ExpectedPath string `json:"expectedPath"`
	ActualPath   string `json:"actualPath"`
	Expected     string `json:"expected,omitempty"`
	Actual       string `json:"actual,omitempty"`
}

// Path returns the path that best locates the difference.
func (d Difference) Path() string {
	switch d.Kind {
	case KindExtraField, KindExtraElement:
		return d.ActualPath
	default:
		return d.ExpectedPath
	}
}

func (d Difference) String() string {
	at := Display(d.Path())
	if d.ActualPath != d.ExpectedPath {
		switch d.Kind {
		case KindValueMismatch, KindTypeMismatch, KindPatternMismatch:
			at = fmt.Sprintf("%s (actual %s)", Display(d.ExpectedPath), Display(d.ActualPath))
		}
	}

	switch d.Kind {
	case KindMissingField:
		return fmt.Sprintf("%s: missing field, expected %s", at, d.Expected)
	case KindExtraField:
		return fmt.Sprintf("%s: unexpected field with value %s", at, d.Actual)
	case KindMissingElement:
		return fmt.Sprintf("%s: expected element %s not found in %s", at, d.Expected, Display(d.ActualPath))
	case KindExtraElement:
		return fmt.Sprintf("%s: unexpected element %s", at, d.Actual)
	case KindPatternMismatch:
		return fmt.Sprintf("%s: %s does not match pattern %s", at, d.Actual, d.Expected)
	case KindTypeMismatch:
		return fmt.Sprintf("%s: expected %s, actual %s of a different type", at, d.Expected, d.Actual)
	default:
		return fmt.Sprintf("%s: expected %s, actual %s", at, d.Expected, d.Actual)
	}
}

// Display renders a path for humans. The root is shown as $.
func Display(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

type Options struct {
	IgnoreArrayOrder bool
}

type Config struct {
	Logger micrologger.Logger
}

// Comparer keeps no state between calls and is safe for concurrent use.
type Comparer struct {
	logger micrologger.Logger
}

func New(config Config) (*Comparer, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}

	c := &Comparer{
		logger: config.Logger,
	}

	return c, nil
}

// CompareBytes parses both documents and compares them. Either document
// failing to parse is an invalidJSONError, never a Difference.
func (c *Comparer) CompareBytes(actual, expected []byte, opts Options) ([]Difference, error) {
	if !gjson.ValidBytes(expected) {
		c.logger.Log("level", "error", "message", "expected body is not valid JSON", "body", truncate(expected))
		return nil, microerror.Maskf(invalidJSONError, "expected body is not valid JSON")
	}
	if !gjson.ValidBytes(actual) {
		c.logger.Log("level", "error", "message", "actual body is not valid JSON", "body", truncate(actual))
		return nil, microerror.Maskf(invalidJSONError, "actual body is not valid JSON")
	}

	return c.Compare(gjson.ParseBytes(actual), gjson.ParseBytes(expected), opts)
}

// Compare walks both trees and returns every difference. The only error is
// an expected pattern leaf that does not compile.
func (c *Comparer) Compare(actual, expected gjson.Result, opts Options) ([]Difference, error) {
	w := &walker{
		logger:   c.logger,
		opts:     opts,
		patterns: map[string]*regexp.Regexp{},
	}

	if err := w.compare("", "", actual, expected); err != nil {
		return nil, err
	}

	return w.diffs, nil
}

type nodeKind int

const (
	nodeAbsent nodeKind = iota
	nodeNull
	nodeBool
	nodeNumber
	nodeString
	nodeObject
	nodeArray
)

func kindOf(r gjson.Result) nodeKind {
	switch {
	case !r.Exists():
		return nodeAbsent
	case r.IsObject():
		return nodeObject
	case r.IsArray():
		return nodeArray
	}
	switch r.Type {
	case gjson.True, gjson.False:
		return nodeBool
	case gjson.Number:
		return nodeNumber
	case gjson.String:
		return nodeString
	default:
		return nodeNull
	}
}

// walker is the accumulator for one Compare call. A positive limit turns it
// into an equality probe that stops once that many differences are found.
type walker struct {
	logger   micrologger.Logger
	opts     Options
	patterns map[string]*regexp.Regexp
	limit    int
	diffs    []Difference
}

func (w *walker) probe(limit int) *walker {
	return &walker{
		logger:   w.logger,
		opts:     w.opts,
		patterns: w.patterns,
		limit:    limit,
	}
}

func (w *walker) full() bool {
	return w.limit > 0 && len(w.diffs) >= w.limit
}

func (w *walker) add(d Difference) {
	w.diffs = append(w.diffs, d)
}

func (w *walker) compare(ap, ep string, actual, expected gjson.Result) error {
	if w.full() {
		return nil
	}

	if expected.Type == gjson.String && pattern.IsDirective(expected.Str) {
		return w.comparePattern(ap, ep, actual, expected)
	}

	ak, ek := kindOf(actual), kindOf(expected)
	switch {
	case ak == nodeAbsent && ek == nodeAbsent:
		return nil
	case ak == nodeAbsent:
		w.add(Difference{Kind: KindMissingField, ExpectedPath: ep, ActualPath: ap, Expected: raw(expected)})
		return nil
	case ek == nodeAbsent:
		w.add(Difference{Kind: KindExtraField, ExpectedPath: ep, ActualPath: ap, Actual: raw(actual)})
		return nil
	case ak != ek:
		w.add(Difference{Kind: KindTypeMismatch, ExpectedPath: ep, ActualPath: ap, Expected: raw(expected), Actual: raw(actual)})
		return nil
	}

	switch ek {
	case nodeObject:
		return w.compareObjects(ap, ep, actual, expected)
	case nodeArray:
		if w.opts.IgnoreArrayOrder {
			return w.compareUnordered(ap, ep, actual.Array(), expected.Array())
		}
		return w.compareOrdered(ap, ep, actual.Array(), expected.Array())
	}

	if !scalarEqual(ek, actual, expected) {
		w.add(Difference{Kind: KindValueMismatch, ExpectedPath: ep, ActualPath: ap, Expected: raw(expected), Actual: raw(actual)})
	}
	return nil
}

func scalarEqual(k nodeKind, actual, expected gjson.Result) bool {
	switch k {
	case nodeBool:
		return actual.Type == expected.Type
	case nodeNumber:
		return actual.Raw == expected.Raw || numberEqual(actual.Raw, expected.Raw)
	case nodeString:
		return actual.Str == expected.Str
	default:
		return true
	}
}

// numberEqual compares JSON numbers by exact decimal value, so 1, 1.0 and
// 1e0 are equal while integers beyond float64 precision stay distinct.
func numberEqual(a, b string) bool {
	x, ok := new(big.Rat).SetString(a)
	if !ok {
		return false
	}
	y, ok := new(big.Rat).SetString(b)
	if !ok {
		return false
	}
	return x.Cmp(y) == 0
}

func (w *walker) comparePattern(ap, ep string, actual, expected gjson.Result) error {
	if !actual.Exists() {
		w.add(Difference{Kind: KindMissingField, ExpectedPath: ep, ActualPath: ap, Expected: raw(expected)})
		return nil
	}

	src := expected.Str[len(pattern.Prefix):]
	re, ok := w.patterns[src]
	if !ok {
		var err error
		re, err = pattern.Compile(src)
		if err != nil {
			w.logger.Log(
				"level", "error",
				"message", "fixture body pattern is not a valid regular expression",
				"path", Display(ep),
				"pattern", src,
				"prefix", pattern.Prefix,
				"error", err.Error(),
			)
			return fmt.Errorf("expected body at %s: %w", Display(ep), err)
		}
		w.patterns[src] = re
	}

	subject := actual.Str
	if actual.Type != gjson.String {
		subject = raw(actual)
	}
	if !re.MatchString(subject) {
		w.add(Difference{Kind: KindPatternMismatch, ExpectedPath: ep, ActualPath: ap, Expected: raw(expected), Actual: raw(actual)})
	}
	return nil
}

// compareObjects uses the first occurrence of a repeated key. Repeats in the
// actual object are reported as extra fields.
func (w *walker) compareObjects(ap, ep string, actual, expected gjson.Result) error {
	actualFields := fields(actual)
	expectedFields := fields(expected)

	var err error
	seen := make(map[string]bool, len(expectedFields))
	expected.ForEach(func(key, value gjson.Result) bool {
		if seen[key.Str] {
			return true
		}
		seen[key.Str] = true

		a, ok := actualFields[key.Str]
		if !ok {
			w.add(Difference{Kind: KindMissingField, ExpectedPath: child(ep, key.Str), ActualPath: child(ap, key.Str), Expected: raw(value)})
			return !w.full()
		}
		err = w.compare(child(ap, key.Str), child(ep, key.Str), a, value)
		return err == nil && !w.full()
	})
	if err != nil {
		return err
	}

	seen = make(map[string]bool, len(actualFields))
	actual.ForEach(func(key, value gjson.Result) bool {
		_, ok := expectedFields[key.Str]
		if ok && !seen[key.Str] {
			seen[key.Str] = true
			return true
		}
		w.add(Difference{Kind: KindExtraField, ExpectedPath: child(ep, key.Str), ActualPath: child(ap, key.Str), Actual: raw(value)})
		return !w.full()
	})

	return nil
}

func fields(obj gjson.Result) map[string]gjson.Result {
	m := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		if _, ok := m[key.Str]; !ok {
			m[key.Str] = value
		}
		return true
	})
	return m
}

func (w *walker) compareOrdered(ap, ep string, actual, expected []gjson.Result) error {
	n := min(len(actual), len(expected))
	for i := 0; i < n; i++ {
		if err := w.compare(index(ap, i), index(ep, i), actual[i], expected[i]); err != nil {
			return err
		}
	}
	for i := n; i < len(expected); i++ {
		w.add(Difference{Kind: KindMissingElement, ExpectedPath: index(ep, i), ActualPath: ap, Expected: raw(expected[i])})
	}
	for i := n; i < len(actual); i++ {
		w.add(Difference{Kind: KindExtraElement, ExpectedPath: ep, ActualPath: index(ap, i), Actual: raw(actual[i])})
	}
	return nil
}

// compareUnordered finds a maximum matching between structurally equal
// elements, then pairs leftover containers by fewest differences so the
// report points at the differing leaf. Whatever is still unpaired is a
// missing or extra element.
func (w *walker) compareUnordered(ap, ep string, actual, expected []gjson.Result) error {
	eq := make([][]bool, len(expected))
	for i := range expected {
		eq[i] = make([]bool, len(actual))
		for j := range actual {
			ok, err := w.equal(index(ap, j), index(ep, i), actual[j], expected[i])
			if err != nil {
				return err
			}
			eq[i][j] = ok
		}
	}

	owner := make([]int, len(actual))
	for j := range owner {
		owner[j] = -1
	}
	for i := range expected {
		augment(i, eq, owner, make([]bool, len(actual)))
	}

	matched := make([]bool, len(expected))
	var extra []int
	for j, i := range owner {
		if i < 0 {
			extra = append(extra, j)
			continue
		}
		matched[i] = true
	}
	var missing []int
	for i, ok := range matched {
		if !ok {
			missing = append(missing, i)
		}
	}

	used := make([]bool, len(actual))
	var unpaired []int
	for _, i := range missing {
		ek := kindOf(expected[i])
		if ek != nodeObject && ek != nodeArray {
			unpaired = append(unpaired, i)
			continue
		}

		best := -1
		var bestDiffs []Difference
		for _, j := range extra {
			if used[j] || kindOf(actual[j]) != ek {
				continue
			}
			p := w.probe(0)
			if err := p.compare(index(ap, j), index(ep, i), actual[j], expected[i]); err != nil {
				return err
			}
			if best < 0 || len(p.diffs) < len(bestDiffs) {
				best, bestDiffs = j, p.diffs
			}
		}
		if best < 0 {
			unpaired = append(unpaired, i)
			continue
		}
		used[best] = true
		w.diffs = append(w.diffs, bestDiffs...)
	}

	for _, i := range unpaired {
		w.add(Difference{Kind: KindMissingElement, ExpectedPath: index(ep, i), ActualPath: ap, Expected: raw(expected[i])})
	}
	for _, j := range extra {
		if used[j] {
			continue
		}
		w.add(Difference{Kind: KindExtraElement, ExpectedPath: ep, ActualPath: index(ap, j), Actual: raw(actual[j])})
	}
	return nil
}

func (w *walker) equal(ap, ep string, actual, expected gjson.Result) (bool, error) {
	p := w.probe(1)
	if err := p.compare(ap, ep, actual, expected); err != nil {
		return false, err
	}
	return len(p.diffs) == 0, nil
}

// augment is one step of Kuhn's algorithm: it tries to give expected
// element i an actual element, moving earlier assignments when needed.
func augment(i int, eq [][]bool, owner []int, seen []bool) bool {
	for j, ok := range eq[i] {
		if !ok || seen[j] {
			continue
		}
		seen[j] = true
		if owner[j] < 0 || augment(owner[j], eq, owner, seen) {
			owner[j] = i
			return true
		}
	}
	return false
}

func child(path, key string) string {
	if !isIdentifier(key) {
		return path + "[" + strconv.Quote(key) + "]"
	}
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func isIdentifier(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_' || r == '$' || r == '-':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func raw(r gjson.Result) string {
	if !r.Exists() {
		return ""
	}
	return string(pretty.Ugly([]byte(r.Raw)))
}

func truncate(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
