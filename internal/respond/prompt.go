package respond

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamisonl/Reverie/internal/gate"
	"github.com/jamisonl/Reverie/internal/store"
)

// SystemPrompt composes the configured persona prompt with the bot's
// name and response guidelines.
func SystemPrompt(base, botName, guidelines string) string {
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n")
	}
	b.WriteString("Your name is ")
	b.WriteString(botName)
	b.WriteString(".")
	if guidelines != "" {
		b.WriteString("\n")
		b.WriteString(guidelines)
	}
	return b.String()
}

// buildPrompt assembles the generation prompt: the literal inbound text
// with author identity, the reply-chain parent when it was ours, then a
// chronological transcript of the author's recent turns followed by the
// gate's relevant messages.
func buildPrompt(in Inbound, decision gate.Decision, recent []store.RecentTurn) string {
	lines := []string{
		fmt.Sprintf("You hear %s with id %s say %q", in.AuthorName, in.AuthorID, in.Content),
	}

	if decision.ReplyTo != nil && decision.ReplyTo.IsBot {
		lines = append(lines, fmt.Sprintf("They are replying to your previous message: %q", decision.ReplyTo.Content))
	}

	lines = append(lines, "This is a history of related messages:")

	for _, turn := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s  %s",
			turn.Username, turn.Content, turn.CreatedAt.UTC().Format(time.RFC3339)))
	}
	for _, msg := range decision.Relevant {
		lines = append(lines, fmt.Sprintf("%s: %s  %s",
			msg.Author, msg.Content, time.UnixMilli(msg.Meta.Timestamp).UTC().Format(time.RFC3339)))
	}

	return strings.Join(lines, "\n")
}

// reactionPrompt builds the short prompt for answering an emoji
// reaction.
func reactionPrompt(r Reaction) string {
	return fmt.Sprintf(
		"%s with id %s has reacted with the emoji %s to a message %q.\nRespond to the emoji. Keep it brief.",
		r.Username, r.UserID, r.Emoji, r.MessageContent,
	)
}

// TrimForPlatform bounds a reply to maxLen runes, cutting at the last
// sentence or line break where possible and appending an ellipsis.
func TrimForPlatform(response string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 2000
	}
	runes := []rune(response)
	if len(runes) <= maxLen {
		return response
	}

	// Too tight for an ellipsis; hard cut.
	if maxLen < 4 {
		return string(runes[:maxLen])
	}

	window := string(runes[:max(0, maxLen-7)])
	breakPoint := -1
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(window, sep); idx > breakPoint {
			breakPoint = idx
		}
	}
	if breakPoint >= 0 {
		return window[:breakPoint+1] + "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
