package guard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestApplyFailsClosedOnMissingReasoning(t *testing.T) {
	g := New(800)
	messages := []*string{nil, ptr(""), ptr("hello"), ptr(strings.Repeat("x", 5000))}
	reasonings := []string{"", "   ", "\n\t"}

	for _, r := range reasonings {
		for _, m := range messages {
			d := g.Apply(Input{Reasoning: r, UserMessage: m})
			assert.Nil(t, d.UserMessage)
			assert.True(t, d.Silent())
			assert.Equal(t, PlaceholderReasoning, d.Reasoning)
			assert.Equal(t, []string{CorrectionMissingReasoning}, d.Corrections)
		}
	}
}

func TestApplyEnforcesCeiling(t *testing.T) {
	g := New(800)
	for _, n := range []int{801, 1000, 10000} {
		d := g.Apply(Input{Reasoning: "thinking", UserMessage: ptr(strings.Repeat("a", n))})
		assert.Nil(t, d.UserMessage, "length %d", n)
		assert.Equal(t, "thinking", d.Reasoning)
		require.Len(t, d.Corrections, 1)
		assert.Contains(t, d.Corrections[0], "too long")
	}
}

func TestApplyCountsCharactersNotBytes(t *testing.T) {
	g := New(5)
	d := g.Apply(Input{Reasoning: "r", UserMessage: ptr("héllo")})
	require.NotNil(t, d.UserMessage)
	assert.Equal(t, "héllo", *d.UserMessage)
}

func TestApplyPassesThrough(t *testing.T) {
	g := New(800)

	d := g.Apply(Input{Reasoning: "ok", UserMessage: ptr(strings.Repeat("a", 800))})
	require.NotNil(t, d.UserMessage)
	assert.Len(t, *d.UserMessage, 800)
	assert.Empty(t, d.Corrections)

	d = g.Apply(Input{Reasoning: "deliberately quiet", UserMessage: ptr("  ")})
	assert.True(t, d.Silent(), "a blank message is no message")

	d = g.Apply(Input{Reasoning: "deliberately quiet"})
	assert.True(t, d.Silent())
	assert.Equal(t, "deliberately quiet", d.Reasoning)
	assert.Empty(t, d.Corrections)
}

func TestApplyWithoutCeiling(t *testing.T) {
	d := New(0).Apply(Input{Reasoning: "r", UserMessage: ptr(strings.Repeat("a", 50000))})
	assert.False(t, d.Silent())
}

func TestStripMarkup(t *testing.T) {
	cases := map[string]string{
		"plain":                           "plain",
		"<message>Hi there</message>":     "Hi there",
		"  <b>bold</b> and <i>it</i>  ":   "bold and it",
		"<strategize></strategize>":       "",
		"2 < 3 but 4 > 1":                 "2  1",
		"<message>\n  spaced\n</message>": "spaced",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripMarkup(in), "input %q", in)
	}
}
