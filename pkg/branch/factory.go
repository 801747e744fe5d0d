package branch

import "github.com/relaybot/relay/pkg/expr"

// NewTextBranch matches conditions against the raw message text.
func NewTextBranch(id string, force bool, conditions *expr.Conditions) *Branch {
	return newBranch(id, force, &textMatcher{conditions: conditions})
}

// NewTextDirectBranch matches conditions against the message text with
// the bot's name/alias prefix stripped first; messages not addressed to
// the bot never match.
func NewTextDirectBranch(id string, force bool, conditions *expr.Conditions, aliases ...string) *Branch {
	return newBranch(id, force, &directTextMatcher{conditions: conditions, aliases: aliases})
}

// NewNaturalLanguageBranch matches on an NLU result attribute cached on
// the State by the understand stage.
func NewNaturalLanguageBranch(id string, force bool, criteria NLUCriteria) *Branch {
	return newBranch(id, force, &nluMatcher{criteria: criteria})
}

// NewNaturalLanguageDirectBranch is NewNaturalLanguageBranch gated on the
// message being addressed to the bot by name/alias.
func NewNaturalLanguageDirectBranch(id string, force bool, criteria NLUCriteria, aliases ...string) *Branch {
	return newBranch(id, force, &directNLUMatcher{inner: nluMatcher{criteria: criteria}, aliases: aliases})
}

// NewServerBranch matches a ServerMessage by event name and a criteria
// bag compared by deep key equality against the message's Data.
func NewServerBranch(id string, force bool, event string, criteria map[string]any) *Branch {
	return newBranch(id, force, &serverMatcher{event: event, criteria: criteria})
}

// NewCustomBranch matches via an arbitrary predicate.
func NewCustomBranch(id string, force bool, predicate CustomPredicate) *Branch {
	return newBranch(id, force, &customMatcher{predicate: predicate})
}

// NewCatchAllBranch matches only when no branch has matched yet in this
// State; used for the act stage's fallback handling.
func NewCatchAllBranch(id string, force bool) *Branch {
	return newBranch(id, force, catchAllMatcher{})
}
