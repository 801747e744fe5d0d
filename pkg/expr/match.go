package expr

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchData is the per-condition result: the raw regexp submatches (nil
// when unmatched) and the trimmed canonical capture.
type MatchData struct {
	Matched  bool
	Raw      []string
	Captured string
}

const trimCutset = ",-: \t"

func trimCaptured(s string) string {
	return strings.Trim(s, trimCutset)
}

// keyPattern compiles the regex fragment for a single key/values pair.
// hasCapture reports whether group 1 of the returned pattern is the
// canonical capture for this key (after/before/range); is/starts/ends/
// contains/excludes are existence checks with no meaningful capture.
func keyPattern(key Key, values []string, opts Options) (pattern string, hasCapture bool, err error) {
	var alts []string
	for _, v := range values {
		alts = append(alts, quoteValue(v, opts))
	}
	alt := strings.Join(alts, "|")

	boundary := ""
	if opts.MatchWord {
		boundary = `\b`
	}

	switch key {
	case KeyIs:
		return `^(?:` + alt + `)$`, false, nil
	case KeyStarts:
		return `^(?:` + alt + `)` + boundary, false, nil
	case KeyEnds:
		return boundary + `(?:` + alt + `)$`, false, nil
	case KeyContains:
		return boundary + `(?:` + alt + `)` + boundary, false, nil
	case KeyExcludes:
		return boundary + `(?:` + alt + `)` + boundary, false, nil
	case KeyAfter:
		return `(?:` + alt + `)` + boundary + `\s*(.+)$`, true, nil
	case KeyBefore:
		return `^(.+?)\s*` + boundary + `(?:` + alt + `)`, true, nil
	case KeyRange:
		if len(values) != 1 {
			return "", false, fmt.Errorf("%w: range takes exactly one \"lo-hi\" value", ErrInvalid)
		}
		r, err := buildRangeRegex(values[0])
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return boundary + `(` + r + `)` + boundary, true, nil
	default:
		return "", false, fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
}

func quoteValue(v string, opts Options) string {
	q := regexp.QuoteMeta(v)
	if opts.IgnorePunctuation {
		for _, p := range []string{",", ".", "!", "?", ";", ":"} {
			q = strings.ReplaceAll(q, p, p+"?")
		}
	}
	return q
}

// execCondition evaluates every key of a Condition against str and merges
// the results: success requires every key to match, and the canonical
// capture is the last key (in declaration order) that produced one.
//
// Keys are evaluated independently rather than joined into one mega
// pattern; this keeps composition (starts+after, before+after on a
// shared anchor) well defined without a capture-group rewriting pass,
// while still satisfying the duplicate-capture and composition examples
// since only keys that actually capture contribute to the final value.
// A non-capturing key records its whole match only while no capturing
// key has matched yet.
func execCondition(c *Condition, str string, opts Options) (*MatchData, error) {
	if len(c.pairs) == 0 {
		return &MatchData{Matched: true}, nil
	}

	result := &MatchData{Matched: true}
	captured := false
	for _, p := range c.pairs {
		pattern, hasCapture, err := keyPattern(p.key, p.values, opts)
		if err != nil {
			return nil, err
		}
		if opts.IgnoreCase {
			pattern = `(?i)` + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}

		raw := re.FindStringSubmatch(str)
		found := raw != nil

		if p.key == KeyExcludes {
			if found {
				result.Matched = false
			}
			continue
		}

		if !found {
			result.Matched = false
			continue
		}

		result.Raw = raw
		if hasCapture && len(raw) > 1 {
			result.Captured = trimCaptured(raw[1])
			captured = true
		} else if !captured {
			result.Captured = trimCaptured(raw[0])
		}
	}
	return result, nil
}
