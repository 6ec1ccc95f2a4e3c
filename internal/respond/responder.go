// Package respond composes the response gate, generation backend and
// persistence into the per-event conversation flow.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamisonl/Reverie/internal/gate"
	"github.com/jamisonl/Reverie/internal/llm"
	"github.com/jamisonl/Reverie/internal/metrics"
	"github.com/jamisonl/Reverie/internal/store"
	"github.com/jamisonl/Reverie/internal/vector"
)

// Attachment is an inbound image reference.
type Attachment struct {
	URL         string
	ContentType string
}

// Inbound is one message event from the gateway.
type Inbound struct {
	ID          string
	Content     string
	Timestamp   int64 // ms since epoch
	ThreadID    string
	AuthorID    string
	AuthorName  string
	IsBot       bool
	Mentions    []string
	ReplyTo     *gate.ReplyRef
	Attachments []Attachment
}

// Reaction is one emoji-reaction event from the gateway.
type Reaction struct {
	UserID         string
	Username       string
	Emoji          string
	MessageContent string
	ThreadID       string
}

// Sent describes an outbound reply the gateway delivered.
type Sent struct {
	ID        string
	Timestamp int64
}

// ReplyFunc delivers a reply for the event being handled.
type ReplyFunc func(ctx context.Context, content string) (Sent, error)

// Decider is the response gate surface.
type Decider interface {
	Decide(ctx context.Context, msg gate.Message, bot gate.Identity, cfg gate.Config) gate.Decision
}

// Indexer is the similarity-index write surface. Best-effort: false
// means the turn was not indexed, never an abort.
type Indexer interface {
	Upsert(ctx context.Context, turn vector.Turn) bool
}

// Recorder is the audit-trail surface.
type Recorder interface {
	CreateOrUpdateUser(ctx context.Context, userID, username string) error
	RecordTurn(ctx context.Context, userID, content, systemPrompt string) (int64, error)
	RecordAttachment(ctx context.Context, turnID int64, url, contentType string) error
	RecordReply(ctx context.Context, turnID int64, content, replyToID string) error
	RecentTurns(ctx context.Context, userID string, limit int) ([]store.RecentTurn, error)
}

// Config tunes the orchestration.
type Config struct {
	BotName             string
	SystemPrompt        string
	ResponseGuidelines  string
	SimilarityThreshold float64
	ContextWindow       int
	MaxRecentTurns      int
	MaxMessageLength    int
	ReactionChance      float64
}

// Responder handles inbound events end to end. Every per-event error
// is absorbed here; nothing escapes to crash the handling task.
type Responder struct {
	gate     Decider
	index    Indexer
	provider llm.Provider
	store    Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	cfg      Config

	mu  sync.RWMutex
	bot gate.Identity

	// chance returns a uniform [0,1) sample; swappable in tests.
	chance func() float64
	now    func() time.Time
}

// New creates a responder. The bot identity is set once the gateway
// connects, via SetIdentity.
func New(g Decider, index Indexer, provider llm.Provider, rec Recorder, coll *metrics.Collector, cfg Config, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	if coll == nil {
		coll = metrics.NewCollector()
	}
	return &Responder{
		gate:     g,
		index:    index,
		provider: provider,
		store:    rec,
		metrics:  coll,
		logger:   logger,
		cfg:      cfg,
		bot:      gate.Identity{Name: cfg.BotName},
		chance:   rand.Float64,
		now:      time.Now,
	}
}

// SetIdentity records the bot's platform identity.
func (r *Responder) SetIdentity(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bot = gate.Identity{ID: id, Name: name}
	r.logger.Info("bot identity set", "id", id, "name", name)
}

func (r *Responder) identity() gate.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bot
}

// HandleMessage runs the full decide-generate-persist flow for one
// inbound message.
func (r *Responder) HandleMessage(ctx context.Context, in Inbound, reply ReplyFunc) {
	bot := r.identity()

	// Never answer ourselves; reply loops otherwise
	if in.IsBot && strings.EqualFold(in.AuthorName, bot.Name) {
		return
	}

	decision := r.gate.Decide(ctx, gate.Message{
		ID:       in.ID,
		Content:  in.Content,
		ThreadID: in.ThreadID,
		AuthorID: in.AuthorID,
		Mentions: in.Mentions,
		ReplyTo:  in.ReplyTo,
	}, bot, gate.Config{
		SimilarityThreshold: r.cfg.SimilarityThreshold,
		ContextWindow:       r.cfg.ContextWindow,
	})

	// Memory grows regardless of whether a reply goes out
	r.indexTurn(ctx, r.turnFrom(in))

	if !decision.ShouldRespond {
		return
	}

	turnID, recent := r.recordInbound(ctx, in)

	prompt := buildPrompt(in, decision, recent)
	imageURLs := make([]string, 0, len(in.Attachments))
	for _, att := range in.Attachments {
		imageURLs = append(imageURLs, att.URL)
	}

	var response string
	err := r.metrics.Observe(metrics.OpGenerate, func() error {
		var genErr error
		response, genErr = r.provider.Generate(ctx, llm.Request{
			Prompt:       prompt,
			SystemPrompt: r.systemPrompt(),
			ImageURLs:    imageURLs,
		})
		return genErr
	})
	if err != nil {
		r.deliverFallback(ctx, err, reply)
		return
	}

	trimmed := TrimForPlatform(response, r.cfg.MaxMessageLength)
	sent, err := reply(ctx, trimmed)
	if err != nil {
		r.logger.Error("failed to deliver reply", "thread", in.ThreadID, "error", err)
		return
	}

	if turnID != 0 {
		if err := r.store.RecordReply(ctx, turnID, trimmed, in.ID); err != nil {
			r.logger.Error("failed to record reply", "turn", turnID, "error", err)
		}
	}

	r.indexTurn(ctx, r.replyTurn(sent, trimmed, in.ThreadID, bot))
}

// HandleReaction answers an emoji reaction with the configured
// probability.
func (r *Responder) HandleReaction(ctx context.Context, reaction Reaction, reply ReplyFunc) {
	if r.chance() >= r.cfg.ReactionChance {
		r.logger.Debug("ignoring reaction", "emoji", reaction.Emoji, "thread", reaction.ThreadID)
		return
	}

	prompt := reactionPrompt(reaction)

	var response string
	err := r.metrics.Observe(metrics.OpGenerate, func() error {
		var genErr error
		response, genErr = r.provider.Generate(ctx, llm.Request{
			Prompt:       prompt,
			SystemPrompt: r.systemPrompt(),
		})
		return genErr
	})
	if err != nil {
		r.logger.Error("reaction response failed", "emoji", reaction.Emoji, "error", err)
		return
	}

	if _, err := reply(ctx, TrimForPlatform(response, r.cfg.MaxMessageLength)); err != nil {
		r.logger.Error("failed to deliver reaction reply", "error", err)
	}
}

// recordInbound writes the audit trail for a turn we intend to answer.
// All failures here are logged and absorbed; the reply path continues.
func (r *Responder) recordInbound(ctx context.Context, in Inbound) (int64, []store.RecentTurn) {
	if err := r.store.CreateOrUpdateUser(ctx, in.AuthorID, in.AuthorName); err != nil {
		r.logger.Error("failed to upsert user", "user", in.AuthorID, "error", err)
	}

	recent, err := r.store.RecentTurns(ctx, in.AuthorID, r.cfg.MaxRecentTurns)
	if err != nil {
		r.logger.Error("failed to load recent turns", "user", in.AuthorID, "error", err)
	}

	turnID, err := r.store.RecordTurn(ctx, in.AuthorID, in.Content, r.systemPrompt())
	if err != nil {
		r.logger.Error("failed to record turn", "user", in.AuthorID, "error", err)
		return 0, recent
	}

	for _, att := range in.Attachments {
		if err := r.store.RecordAttachment(ctx, turnID, att.URL, att.ContentType); err != nil {
			r.logger.Error("failed to record attachment", "turn", turnID, "error", err)
		}
	}

	return turnID, recent
}

// deliverFallback sends the single user-visible failure message. The
// rate-limit denial gets distinct wording from a backend failure; the
// underlying detail stays in the logs.
func (r *Responder) deliverFallback(ctx context.Context, genErr error, reply ReplyFunc) {
	var msg string
	if errors.Is(genErr, llm.ErrUnavailable) {
		msg = fmt.Sprintf("*%s needs a moment to catch their breath...*", r.cfg.BotName)
	} else {
		msg = fmt.Sprintf("*%s seems distracted...*", r.cfg.BotName)
	}
	r.logger.Error("generation failed", "error", genErr)

	if _, err := reply(ctx, msg); err != nil {
		r.logger.Error("failed to deliver fallback", "error", err)
	}
}

func (r *Responder) indexTurn(ctx context.Context, turn vector.Turn) {
	if !r.index.Upsert(ctx, turn) {
		r.logger.Warn("turn not indexed", "id", turn.ID, "thread", turn.ThreadID)
	}
}

func (r *Responder) turnFrom(in Inbound) vector.Turn {
	return vector.Turn{
		ID:         in.ID,
		Content:    in.Content,
		Timestamp:  in.Timestamp,
		ThreadID:   in.ThreadID,
		AuthorID:   in.AuthorID,
		AuthorName: in.AuthorName,
		IsBot:      in.IsBot,
	}
}

func (r *Responder) replyTurn(sent Sent, content, threadID string, bot gate.Identity) vector.Turn {
	id := sent.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := sent.Timestamp
	if ts == 0 {
		ts = r.now().UnixMilli()
	}
	return vector.Turn{
		ID:         id,
		Content:    content,
		Timestamp:  ts,
		ThreadID:   threadID,
		AuthorID:   bot.ID,
		AuthorName: bot.Name,
		IsBot:      true,
	}
}

func (r *Responder) systemPrompt() string {
	return SystemPrompt(r.cfg.SystemPrompt, r.cfg.BotName, r.cfg.ResponseGuidelines)
}
