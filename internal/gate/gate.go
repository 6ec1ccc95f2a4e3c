// Package gate decides whether an inbound message deserves a reply and
// assembles the ranked context for prompt construction.
package gate

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/jamisonl/Reverie/internal/vector"
)

// Searcher is the similarity-index surface the gate needs. A failing
// index returns an empty slice, never an error.
type Searcher interface {
	Query(ctx context.Context, text, threadID string, limit int) []vector.Result
}

// ReplyRef is the reply-chain parent of a message, if any.
type ReplyRef struct {
	MessageID string
	Author    string
	Content   string
	IsBot     bool
}

// Message is the inbound event as the gate sees it.
type Message struct {
	ID       string
	Content  string
	ThreadID string
	AuthorID string
	// Mentions holds lowercased usernames explicitly mentioned.
	Mentions []string
	ReplyTo  *ReplyRef
}

// Identity is the bot's own platform identity.
type Identity struct {
	ID   string
	Name string
}

// Config tunes the decision.
type Config struct {
	SimilarityThreshold float64
	ContextWindow       int
}

// Decision is the gate's output, computed per inbound message and
// never persisted.
type Decision struct {
	ShouldRespond bool
	// Relevant is ordered by timestamp descending for prompt
	// construction; selection ranking was by similarity.
	Relevant      []vector.Result
	AvgSimilarity float64
	ReplyTo       *ReplyRef
}

// Gate fuses heuristic triggers with similarity scores.
type Gate struct {
	index  Searcher
	logger *slog.Logger
}

// New creates a gate over the given similarity index.
func New(index Searcher, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{index: index, logger: logger}
}

// Decide evaluates triggers in order: direct address, question
// heuristic, then average similarity against the threshold. Any true
// condition short-circuits. Index failure never blocks an otherwise
// valid response; it only empties the context.
func (g *Gate) Decide(ctx context.Context, msg Message, bot Identity, cfg Config) Decision {
	directMention := isDirectMention(msg.Content, bot.ID, bot.Name) ||
		containsFold(msg.Mentions, bot.Name) ||
		(msg.ReplyTo != nil && msg.ReplyTo.IsBot)

	relevant := g.index.Query(ctx, msg.Content, msg.ThreadID, cfg.ContextWindow)

	// Unfiltered mean: every returned result counts, including any
	// below the threshold.
	avg := 0.0
	for _, r := range relevant {
		avg += r.Similarity
	}
	if len(relevant) > 0 {
		avg /= float64(len(relevant))
	}

	shouldRespond := directMention ||
		isQuestion(msg.Content) ||
		(len(relevant) > 0 && avg >= cfg.SimilarityThreshold)

	// Presentation order is chronological, most recent first.
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Meta.Timestamp > relevant[j].Meta.Timestamp
	})

	g.logger.Info("response decision",
		"thread", msg.ThreadID,
		"author", msg.AuthorID,
		"direct_mention", directMention,
		"avg_similarity", avg,
		"relevant", len(relevant),
		"should_respond", shouldRespond,
	)

	return Decision{
		ShouldRespond: shouldRespond,
		Relevant:      relevant,
		AvgSimilarity: avg,
		ReplyTo:       msg.ReplyTo,
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
