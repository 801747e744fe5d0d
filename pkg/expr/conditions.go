// Package expr compiles declarative match conditions into deterministic
// regular expressions and evaluates them against message text, underlying
// the branch and path packages' text matching.
package expr

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalid is the sentinel a malformed string-form expression or
// condition fails with; wrapped to satisfy errors.Is(err, ErrInvalid).
var ErrInvalid = errors.New("invalid expression")

// Result is the aggregate outcome of Conditions.Exec.
//
// Match/Matched are a single *MatchData and Captured a string when
// Conditions was built from one unnamed Condition or raw expression. For
// a named collection Match is the success bool, Matched is a
// map[string]*MatchData and Captured a map[string]string, keyed by name.
// For a list of several unnamed Conditions Match is the success bool,
// Matched is a []*MatchData and Captured the last non-empty capture.
type Result struct {
	Success  bool
	Match    any
	Matched  any
	Captured any
}

// Conditions is a compiled matcher built from a string expression, a
// compiled regexp, a single Condition, a list of Conditions, or a named
// collection of Conditions.
type Conditions struct {
	opts Options

	raw *regexp.Regexp // from a "/pattern/flags" string or *regexp.Regexp input

	list []*Condition // unnamed Condition or []*Condition

	names []string // insertion order for a named collection
	named map[string]*Condition
}

// New compiles input into a Conditions value. Accepted input types:
// string ("/pattern/flags"), *regexp.Regexp, *Condition, []*Condition,
// map[string]*Condition (iterated in sorted key order since Go maps have
// no stable order), or []Named for an explicitly ordered collection.
func New(input any, opts ...Option) (*Conditions, error) {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	c := &Conditions{opts: o}

	switch v := input.(type) {
	case string:
		re, err := compileLiteral(v, o)
		if err != nil {
			return nil, err
		}
		c.raw = re
	case *regexp.Regexp:
		c.raw = v
	case *Condition:
		c.list = []*Condition{v}
	case []*Condition:
		c.list = v
	case map[string]*Condition:
		c.named = v
		c.names = make([]string, 0, len(v))
		for k := range v {
			c.names = append(c.names, k)
		}
		sort.Strings(c.names)
	case []Named:
		c.named = make(map[string]*Condition, len(v))
		c.names = make([]string, 0, len(v))
		for _, n := range v {
			c.named[n.Name] = n.Cond
			c.names = append(c.names, n.Name)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported condition input %T", ErrInvalid, input)
	}

	return c, nil
}

// Named pairs a name with a Condition, preserving declaration order when
// building a named collection via New.
type Named struct {
	Name string
	Cond *Condition
}

// compileLiteral parses a "/pattern/flags" string into a regexp; any
// other shape fails with ErrInvalid.
func compileLiteral(s string, o Options) (*regexp.Regexp, error) {
	if len(s) < 2 || s[0] != '/' {
		return nil, fmt.Errorf("%w: %q is not in /pattern/flags form", ErrInvalid, s)
	}
	last := strings.LastIndexByte(s, '/')
	if last <= 0 {
		return nil, fmt.Errorf("%w: %q is missing a closing slash", ErrInvalid, s)
	}
	pattern := s[1:last]
	flags := s[last+1:]

	prefix := ""
	if strings.Contains(flags, "i") || o.IgnoreCase {
		prefix = "(?i)"
	}
	re, err := regexp.Compile(prefix + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return re, nil
}

// Exec evaluates str against the compiled conditions and aggregates the
// per-condition results per the rules in execCondition and the package
// doc: success requires every condition to match.
func (c *Conditions) Exec(str string) (*Result, error) {
	if c.raw != nil {
		raw := c.raw.FindStringSubmatch(str)
		matched := raw != nil
		captured := ""
		if matched {
			if len(raw) > 1 {
				captured = trimCaptured(raw[1])
			} else {
				captured = trimCaptured(raw[0])
			}
		}
		data := &MatchData{Matched: matched, Raw: raw, Captured: captured}
		return &Result{Success: matched, Match: data, Matched: data, Captured: captured}, nil
	}

	if c.named != nil {
		matchedMap := make(map[string]*MatchData, len(c.names))
		capturedMap := make(map[string]string, len(c.names))
		success := true
		for _, name := range c.names {
			cond := c.named[name]
			data, err := execCondition(cond, str, c.opts)
			if err != nil {
				return nil, err
			}
			matchedMap[name] = data
			capturedMap[name] = data.Captured
			if !data.Matched {
				success = false
			}
		}
		return &Result{Success: success, Match: success, Matched: matchedMap, Captured: capturedMap}, nil
	}

	// Unnamed list: single Condition collapses to single values per the
	// spec's "single value when a single unnamed condition was supplied".
	if len(c.list) == 1 {
		data, err := execCondition(c.list[0], str, c.opts)
		if err != nil {
			return nil, err
		}
		return &Result{Success: data.Matched, Match: data, Matched: data, Captured: data.Captured}, nil
	}

	datas := make([]*MatchData, 0, len(c.list))
	success := true
	var lastCaptured string
	for _, cond := range c.list {
		data, err := execCondition(cond, str, c.opts)
		if err != nil {
			return nil, err
		}
		datas = append(datas, data)
		if !data.Matched {
			success = false
		}
		if data.Captured != "" {
			lastCaptured = data.Captured
		}
	}
	return &Result{Success: success, Match: success, Matched: datas, Captured: lastCaptured}, nil
}
