// Package classify maps free-text procedure descriptions to a billing
// category and RVU value.
//
// Matching is deterministic keyword-rule evaluation: an exact-match lookup
// table is consulted first, then priority-ordered rules (first defined wins).
// The engine only reads immutable tables, so Classify is safe for concurrent
// callers; hot reload swaps the whole table atomically.
package classify

import (
	"strings"
	"sync/atomic"
)

// UnknownStudyType is returned when no lookup entry or rule matches.
const UnknownStudyType = "Unknown"

// ConditionGroup is one way a rule can match. A group matches iff every
// Required keyword is present, at least one AnyOf keyword is present when
// AnyOf is non-empty, and no Excluded keyword is present.
type ConditionGroup struct {
	Required []string `yaml:"required"`
	AnyOf    []string `yaml:"any_of"`
	Excluded []string `yaml:"excluded"`
}

// Rule maps procedure text to a study type and RVU value. A rule matches if
// any of its condition groups matches.
type Rule struct {
	StudyType string           `yaml:"study_type"`
	RVU       float64          `yaml:"rvu"`
	Groups    []ConditionGroup `yaml:"groups"`
}

// Result is the outcome of a classification.
type Result struct {
	StudyType string
	RVU       float64
}

// Unknown reports whether the result is the no-match fallback.
func (r Result) Unknown() bool { return r.StudyType == UnknownStudyType }

// Table is an immutable rule set: a direct lookup consulted before the
// ordered rules. Build one with NewTable or LoadFile.
type Table struct {
	direct map[string]Result
	rules  []Rule
}

// NewTable builds an immutable table from a direct lookup and ordered rules.
// All keywords and lookup keys are normalized once here so Classify only
// does substring checks.
func NewTable(direct map[string]Result, rules []Rule) *Table {
	t := &Table{
		direct: make(map[string]Result, len(direct)),
		rules:  make([]Rule, len(rules)),
	}
	for text, res := range direct {
		t.direct[normalize(text)] = res
	}
	for i, r := range rules {
		nr := Rule{StudyType: r.StudyType, RVU: r.RVU, Groups: make([]ConditionGroup, len(r.Groups))}
		for j, g := range r.Groups {
			nr.Groups[j] = ConditionGroup{
				Required: normalizeAll(g.Required),
				AnyOf:    normalizeAll(g.AnyOf),
				Excluded: normalizeAll(g.Excluded),
			}
		}
		t.rules[i] = nr
	}
	return t
}

// Engine classifies procedure text against the current table.
type Engine struct {
	table atomic.Pointer[Table]
}

// New creates an engine with configuration options. Without options the
// engine starts with an empty table and classifies everything as Unknown.
func New(opts ...Option) *Engine {
	e := &Engine{}
	e.table.Store(NewTable(nil, nil))
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Swap atomically replaces the whole table. Used at startup and by the hot
// reload watcher.
func (e *Engine) Swap(t *Table) {
	if t != nil {
		e.table.Store(t)
	}
}

// Classify maps procedure text to a study type and RVU value. Deterministic,
// no side effects, linear in total keyword count.
func (e *Engine) Classify(procedureText string) Result {
	t := e.table.Load()
	text := normalize(procedureText)

	if res, ok := t.direct[text]; ok {
		return res
	}

	for _, r := range t.rules {
		for _, g := range r.Groups {
			if groupMatches(text, g) {
				return Result{StudyType: r.StudyType, RVU: r.RVU}
			}
		}
	}

	return Result{StudyType: UnknownStudyType, RVU: 0}
}

// RuleCount returns the number of loaded rules, for stats reporting.
func (e *Engine) RuleCount() int {
	return len(e.table.Load().rules)
}

func groupMatches(text string, g ConditionGroup) bool {
	for _, kw := range g.Required {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(g.AnyOf) > 0 {
		any := false
		for _, kw := range g.AnyOf {
			if strings.Contains(text, kw) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for _, kw := range g.Excluded {
		if strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = normalize(s)
	}
	return out
}
