// Package guard turns raw oracle output into a send-or-stay-silent decision
// using structural checks only.
package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// PlaceholderReasoning replaces reasoning the oracle failed to provide.
const PlaceholderReasoning = "Conducted analysis but did not provide strategic thinking in the expected format."

const (
	CorrectionMissingReasoning = "No strategize content found - model did not follow the reply format"
	correctionTooLongFormat    = "Message too long (%d chars, limit %d) - defaulting to silence"
)

// Input is the pair of optional text fields an oracle reply carries.
type Input struct {
	Reasoning   string
	UserMessage *string
}

// Decision is the normalized reply. A nil UserMessage means stay silent.
type Decision struct {
	UserMessage *string
	Reasoning   string
	Corrections []string
}

// Silent reports whether nothing should be delivered.
func (d Decision) Silent() bool {
	return d.UserMessage == nil
}

type Guard struct {
	// MaxMessageLen is the ceiling in characters. Zero disables the check.
	MaxMessageLen int
}

func New(maxMessageLen int) *Guard {
	return &Guard{MaxMessageLen: maxMessageLen}
}

// Apply enforces, in order: reasoning must be present, the message must fit
// the ceiling. Any failure defaults to silence.
func (g *Guard) Apply(in Input) Decision {
	if strings.TrimSpace(in.Reasoning) == "" {
		return Decision{
			Reasoning:   PlaceholderReasoning,
			Corrections: []string{CorrectionMissingReasoning},
		}
	}

	if in.UserMessage == nil || strings.TrimSpace(*in.UserMessage) == "" {
		return Decision{Reasoning: in.Reasoning, Corrections: []string{}}
	}

	if n := utf8.RuneCountInString(*in.UserMessage); g.MaxMessageLen > 0 && n > g.MaxMessageLen {
		return Decision{
			Reasoning:   in.Reasoning,
			Corrections: []string{fmt.Sprintf(correctionTooLongFormat, n, g.MaxMessageLen)},
		}
	}

	msg := *in.UserMessage
	return Decision{UserMessage: &msg, Reasoning: in.Reasoning, Corrections: []string{}}
}
