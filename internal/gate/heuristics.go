package gate

import (
	"fmt"
	"regexp"
)

var (
	endsWithQuestionMark = regexp.MustCompile(`\?$`)
	interrogativeStart   = regexp.MustCompile(`(?i)^(what|who|where|when|why|how|can|could|would|should|is|are|do|does|did)`)
	addressesAnyone      = regexp.MustCompile(`(?i)\b(anyone|anybody)\b`)
)

// isQuestion reports whether raw message text reads as a question:
// ends with "?", opens with an interrogative word, or addresses
// "anyone"/"anybody".
func isQuestion(content string) bool {
	return endsWithQuestionMark.MatchString(content) ||
		interrogativeStart.MatchString(content) ||
		addressesAnyone.MatchString(content)
}

// isDirectMention reports whether the text addresses the bot by its
// platform mention token, @name, or bare name as a whole word.
func isDirectMention(content, botID, botName string) bool {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)<@%s>`, regexp.QuoteMeta(botID))),
		regexp.MustCompile(fmt.Sprintf(`(?i)@%s\b`, regexp.QuoteMeta(botName))),
		regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(botName))),
	}
	for _, p := range patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}
