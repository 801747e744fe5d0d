package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditions_SingleConditionNaturalInput(t *testing.T) {
	c, err := New(Is("hello"))
	require.NoError(t, err)

	res, err := c.Exec("hello")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestConditions_ContainsWrapsWhitespace(t *testing.T) {
	c, err := New(Contains("alarm"))
	require.NoError(t, err)

	res, err := c.Exec("  alarm  ")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestConditions_Composition(t *testing.T) {
	cond := Combine(Starts("set"), After("set"))
	c, err := New(cond, WithMatchWord(true))
	require.NoError(t, err)

	res, err := c.Exec("set alarm 7")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "alarm 7", res.Captured)
}

func TestConditions_DuplicateCaptureDeduplication(t *testing.T) {
	cond := Combine(Before("x"), After("x"))
	c, err := New(cond)
	require.NoError(t, err)

	res, err := c.Exec("x foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", res.Captured)
}

func TestConditions_Excludes(t *testing.T) {
	c, err := New(Excludes("stop"))
	require.NoError(t, err)

	res, err := c.Exec("please continue")
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = c.Exec("please stop")
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestConditions_Range(t *testing.T) {
	c, err := New(RangeCond("10-20"))
	require.NoError(t, err)

	res, err := c.Exec("set volume to 15")
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = c.Exec("set volume to 45")
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestConditions_StringLiteral(t *testing.T) {
	c, err := New(`/^hi (\w+)$/i`)
	require.NoError(t, err)

	res, err := c.Exec("Hi There")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "There", res.Captured)
}

func TestConditions_MalformedLiteral(t *testing.T) {
	_, err := New("not-a-literal")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestConditions_NamedCollection(t *testing.T) {
	c, err := New(map[string]*Condition{
		"greeting": Is("hi"),
		"farewell": Is("bye"),
	})
	require.NoError(t, err)

	res, err := c.Exec("hi")
	require.NoError(t, err)
	assert.False(t, res.Success)

	matched, ok := res.Matched.(map[string]*MatchData)
	require.True(t, ok)
	assert.True(t, matched["greeting"].Matched)
	assert.False(t, matched["farewell"].Matched)
}
