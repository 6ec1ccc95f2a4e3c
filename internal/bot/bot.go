// Package bot connects the responder to the Discord gateway.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jamisonl/Reverie/internal/config"
	"github.com/jamisonl/Reverie/internal/respond"
)

// Bot wraps a Discord gateway session with lifecycle management.
type Bot struct {
	session   *discordgo.Session
	responder *respond.Responder
	commands  *commandHandler
	cfg       *config.Config
	logger    *slog.Logger
}

// New creates a gateway client. The session is configured but not yet
// connected; call Run to open it.
func New(cfg *config.Config, responder *respond.Responder, indexer BulkIndexer, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildMessageReactions

	b := &Bot{
		session:   session,
		responder: responder,
		commands:  newCommandHandler(cfg, indexer, logger),
		cfg:       cfg,
		logger:    logger,
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onReactionAdd)
	session.AddHandler(b.commands.onInteraction)

	return b, nil
}

// Run opens the gateway connection and blocks until the context is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway connection: %w", err)
	}
	b.logger.Info("gateway connected", "bot", b.cfg.BotName)

	<-ctx.Done()

	b.logger.Info("closing gateway connection")
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.responder.SetIdentity(r.User.ID, r.User.Username)

	if err := b.commands.register(s, r.User.ID); err != nil {
		b.logger.Error("failed to register commands", "error", err)
	}
}
