package oracle

import (
	"regexp"
	"strings"
)

const (
	reasoningTag = "strategize"
	messageTag   = "message"
)

var (
	reasoningPattern = regexp.MustCompile(`(?s)<` + reasoningTag + `>(.*?)</` + reasoningTag + `>`)
	messagePattern   = regexp.MustCompile(`(?s)<` + messageTag + `>(.*?)</` + messageTag + `>`)
)

// ParseReply splits model text into its reasoning and message sections.
// Without a message section, any text left after removing the reasoning
// section is taken as the message. A reply with no reasoning section yields
// empty reasoning, which the guard treats as a protocol violation.
func ParseReply(text string) (reasoning string, message *string) {
	if m := reasoningPattern.FindStringSubmatch(text); m != nil {
		reasoning = strings.TrimSpace(m[1])
	}

	if m := messagePattern.FindStringSubmatch(text); m != nil {
		if msg := strings.TrimSpace(m[1]); msg != "" {
			message = &msg
		}
		return reasoning, message
	}

	if rest := strings.TrimSpace(reasoningPattern.ReplaceAllString(text, "")); rest != "" {
		message = &rest
	}
	return reasoning, message
}

// FormatReply is the transcript form of a reply.
func FormatReply(reasoning string, message *string) string {
	var b strings.Builder
	if reasoning != "" {
		b.WriteString("<" + reasoningTag + ">" + reasoning + "</" + reasoningTag + ">")
	}
	if message != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("<" + messageTag + ">" + *message + "</" + messageTag + ">")
	}
	return b.String()
}
