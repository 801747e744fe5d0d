package branch

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/relaybot/relay/pkg/expr"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

// textMatcher evaluates Conditions against the message text.
type textMatcher struct {
	conditions *expr.Conditions
}

func (m *textMatcher) Match(msg *model.Message, _ *state.State) (*MatchResult, error) {
	if msg == nil || msg.Kind != model.KindText {
		return &MatchResult{}, nil
	}
	res, err := m.conditions.Exec(msg.Text)
	if err != nil {
		return nil, err
	}
	return &MatchResult{Matched: res.Success, Match: res.Match, Captured: res.Captured}, nil
}

// directTextMatcher requires the message to begin with the bot's name or
// one of its aliases before delegating to the wrapped Conditions.
type directTextMatcher struct {
	conditions *expr.Conditions
	aliases    []string
}

func stripDirectPrefix(text, botName string, aliases []string) (string, bool) {
	names := append([]string{botName}, aliases...)
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, name := range names {
		if name == "" {
			continue
		}
		nameLower := strings.ToLower(name)
		if lower == nameLower {
			return "", true
		}
		if strings.HasPrefix(lower, nameLower) {
			rest := trimmed[len(name):]
			rest = strings.TrimLeft(rest, " :,\t")
			return rest, true
		}
	}
	return "", false
}

func (m *directTextMatcher) Match(msg *model.Message, st *state.State) (*MatchResult, error) {
	if msg == nil || msg.Kind != model.KindText {
		return &MatchResult{}, nil
	}
	rest, ok := stripDirectPrefix(msg.Text, st.BotName, m.aliases)
	if !ok {
		return &MatchResult{}, nil
	}
	res, err := m.conditions.Exec(rest)
	if err != nil {
		return nil, err
	}
	return &MatchResult{Matched: res.Success, Match: res.Match, Captured: res.Captured}, nil
}

// NLUOperator names a comparison applied to an NLU result attribute.
type NLUOperator string

const (
	NLUIs       NLUOperator = "is"
	NLUMatches  NLUOperator = "matches"
	NLUContains NLUOperator = "contains"
)

// NLUCriteria selects which NLU attribute a NaturalLanguageBranch reads
// and how it is compared.
type NLUCriteria struct {
	Attribute string // "intent", "entity:<name>", "sentiment", "language"
	Operator  NLUOperator
	Value     string
	Pattern   *regexp.Regexp // used when Operator == NLUMatches
	Threshold float64        // minimum intent score, ignored for non-intent attributes
}

type nluMatcher struct {
	criteria NLUCriteria
}

func (m *nluMatcher) Match(msg *model.Message, st *state.State) (*MatchResult, error) {
	result, _ := st.NLUResult().(*model.NLUResult)
	if result == nil {
		return &MatchResult{}, nil
	}

	var value string
	switch {
	case m.criteria.Attribute == "intent":
		top := result.TopIntent()
		if top.Score < m.criteria.Threshold {
			return &MatchResult{}, nil
		}
		value = top.Name
	case m.criteria.Attribute == "sentiment":
		value = result.Sentiment
	case m.criteria.Attribute == "language":
		value = result.Language
	case strings.HasPrefix(m.criteria.Attribute, "entity:"):
		key := strings.TrimPrefix(m.criteria.Attribute, "entity:")
		value = result.Entities[key]
	}

	switch m.criteria.Operator {
	case NLUIs:
		if value == m.criteria.Value {
			return &MatchResult{Matched: true, Match: value, Captured: value}, nil
		}
	case NLUContains:
		if strings.Contains(value, m.criteria.Value) {
			return &MatchResult{Matched: true, Match: value, Captured: value}, nil
		}
	case NLUMatches:
		if m.criteria.Pattern != nil && m.criteria.Pattern.MatchString(value) {
			return &MatchResult{Matched: true, Match: value, Captured: value}, nil
		}
	}
	return &MatchResult{}, nil
}

type directNLUMatcher struct {
	inner   nluMatcher
	aliases []string
}

func (m *directNLUMatcher) Match(msg *model.Message, st *state.State) (*MatchResult, error) {
	if msg == nil || msg.Kind != model.KindText {
		return &MatchResult{}, nil
	}
	if _, ok := stripDirectPrefix(msg.Text, st.BotName, m.aliases); !ok {
		return &MatchResult{}, nil
	}
	return m.inner.Match(msg, st)
}

// serverMatcher compares a criteria bag to a ServerMessage's Data by
// deep key equality: every key in criteria must exist in msg.Data with
// an equal value (reflect.DeepEqual, so nested maps/slices compare too).
type serverMatcher struct {
	event    string
	criteria map[string]any
}

func (m *serverMatcher) Match(msg *model.Message, _ *state.State) (*MatchResult, error) {
	if msg == nil || !msg.IsServer() {
		return &MatchResult{}, nil
	}
	if m.event != "" && msg.Event != m.event {
		return &MatchResult{}, nil
	}
	for k, want := range m.criteria {
		got, ok := msg.Data[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return &MatchResult{}, nil
		}
	}
	return &MatchResult{Matched: true, Match: msg.Data}, nil
}

// CustomPredicate is a user-supplied matcher; returning a non-nil
// *MatchResult lets it carry match/captured data of its own.
type CustomPredicate func(msg *model.Message, st *state.State) (*MatchResult, error)

type customMatcher struct {
	predicate CustomPredicate
}

func (m *customMatcher) Match(msg *model.Message, st *state.State) (*MatchResult, error) {
	res, err := m.predicate(msg, st)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &MatchResult{}, nil
	}
	return res, nil
}

// catchAllMatcher matches iff the State carries no prior matches from
// listen/understand, per the CatchAllBranch contract.
type catchAllMatcher struct{}

func (catchAllMatcher) Match(msg *model.Message, st *state.State) (*MatchResult, error) {
	if st.HasMatched() {
		return &MatchResult{}, nil
	}
	return &MatchResult{Matched: true}, nil
}
