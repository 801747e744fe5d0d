package expr

// Key names one of the semantic match operators a Condition can combine.
type Key string

const (
	KeyIs       Key = "is"
	KeyStarts   Key = "starts"
	KeyEnds     Key = "ends"
	KeyContains Key = "contains"
	KeyExcludes Key = "excludes"
	KeyAfter    Key = "after"
	KeyBefore   Key = "before"
	KeyRange    Key = "range"
)

// pair is one key and its OR-ed values, kept in declaration order so a
// Condition can reproduce the concatenation order the owner registered.
type pair struct {
	key    Key
	values []string
}

// Condition is a mapping from one or more keys to string or list-of-string
// values, built in declaration order via its builder methods so that
// concatenation (composing starts+after, before+after, …) is deterministic.
type Condition struct {
	pairs []pair
}

// NewCondition starts an empty Condition to be built with the key methods.
func NewCondition() *Condition {
	return &Condition{}
}

func (c *Condition) add(k Key, values []string) *Condition {
	c.pairs = append(c.pairs, pair{key: k, values: values})
	return c
}

func (c *Condition) Is(values ...string) *Condition       { return c.add(KeyIs, values) }
func (c *Condition) Starts(values ...string) *Condition   { return c.add(KeyStarts, values) }
func (c *Condition) Ends(values ...string) *Condition     { return c.add(KeyEnds, values) }
func (c *Condition) Contains(values ...string) *Condition { return c.add(KeyContains, values) }
func (c *Condition) Excludes(values ...string) *Condition { return c.add(KeyExcludes, values) }
func (c *Condition) After(values ...string) *Condition    { return c.add(KeyAfter, values) }
func (c *Condition) Before(values ...string) *Condition   { return c.add(KeyBefore, values) }

// Range adds a numeric range key, e.g. Range("0-999").
func (c *Condition) Range(lowHigh string) *Condition { return c.add(KeyRange, []string{lowHigh}) }

// Combine concatenates the pairs of several Conditions into one, in the
// order given, mirroring a single Condition that declared every key of
// its arguments in sequence (used for starts+after/before+after style
// composition built from reusable fragments).
func Combine(conditions ...*Condition) *Condition {
	out := NewCondition()
	for _, c := range conditions {
		if c == nil {
			continue
		}
		out.pairs = append(out.pairs, c.pairs...)
	}
	return out
}

// Is, Starts, Ends, Contains, Excludes, After, Before and RangeCond are
// package-level shorthands for building a single-key Condition inline.
func Is(values ...string) *Condition       { return NewCondition().Is(values...) }
func Starts(values ...string) *Condition   { return NewCondition().Starts(values...) }
func Ends(values ...string) *Condition     { return NewCondition().Ends(values...) }
func Contains(values ...string) *Condition { return NewCondition().Contains(values...) }
func Excludes(values ...string) *Condition { return NewCondition().Excludes(values...) }
func After(values ...string) *Condition    { return NewCondition().After(values...) }
func Before(values ...string) *Condition   { return NewCondition().Before(values...) }
func RangeCond(lowHigh string) *Condition  { return NewCondition().Range(lowHigh) }
