package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jamisonl/Reverie/internal/config"
	"github.com/jamisonl/Reverie/internal/vector"
)

const historyPageSize = 100

// BulkIndexer is the similarity-index surface the admin commands need.
type BulkIndexer interface {
	Upsert(ctx context.Context, turn vector.Turn) bool
	Clear(ctx context.Context, threadID string) bool
}

type commandHandler struct {
	cfg     *config.Config
	index   BulkIndexer
	logger  *slog.Logger
	botName string
}

func newCommandHandler(cfg *config.Config, index BulkIndexer, logger *slog.Logger) *commandHandler {
	return &commandHandler{
		cfg:     cfg,
		index:   index,
		logger:  logger,
		botName: cfg.BotName,
	}
}

func (h *commandHandler) register(s *discordgo.Session, appID string) error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "clear-history",
			Description: "Clear the bot's memory of this channel",
		},
		{
			Name:        "index-channel",
			Description: "Index this channel's message history into the bot's memory",
		},
	}

	for _, cmd := range commands {
		if _, err := s.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("registering command %q: %w", cmd.Name, err)
		}
	}
	return nil
}

func (h *commandHandler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if !h.cfg.ChannelAllowed(i.ChannelID) {
		return
	}

	name := i.ApplicationCommandData().Name
	userID := interactionUserID(i)

	if !h.cfg.IsAdmin(userID) {
		h.logger.Warn("non-admin attempted command", "command", name, "user", userID)
		h.respondEphemeral(s, i, "You are not allowed to run this command.")
		return
	}

	switch name {
	case "clear-history":
		h.clearHistory(s, i)
	case "index-channel":
		h.indexChannel(s, i)
	}
}

func (h *commandHandler) clearHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.deferEphemeral(s, i)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		channelID := i.ChannelID
		if h.index.Clear(ctx, channelID) {
			h.logger.Info("channel memory cleared", "channel", channelID)
			h.editResponse(s, i, "Memory of this channel has been cleared.")
		} else {
			h.editResponse(s, i, "Could not clear channel memory; check the logs.")
		}
	}()
}

// indexChannel walks the channel history backwards one page at a time
// and upserts every human-authored message.
func (h *commandHandler) indexChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.deferEphemeral(s, i)

	channelID := i.ChannelID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		indexed, failed := 0, 0
		beforeID := ""

		for {
			messages, err := s.ChannelMessages(channelID, historyPageSize, beforeID, "", "")
			if err != nil {
				h.logger.Error("failed to fetch channel history", "channel", channelID, "error", err)
				h.editResponse(s, i, fmt.Sprintf("Indexing aborted after %d messages; check the logs.", indexed))
				return
			}
			if len(messages) == 0 {
				break
			}

			for _, msg := range messages {
				if msg.Author == nil || msg.Author.Bot || msg.Content == "" {
					continue
				}
				ok := h.index.Upsert(ctx, vector.Turn{
					ID:         msg.ID,
					Content:    msg.Content,
					Timestamp:  msg.Timestamp.UnixMilli(),
					ThreadID:   channelID,
					AuthorID:   msg.Author.ID,
					AuthorName: msg.Author.Username,
				})
				if ok {
					indexed++
				} else {
					failed++
				}
			}

			beforeID = messages[len(messages)-1].ID

			if ctx.Err() != nil {
				h.logger.Warn("indexing timed out", "channel", channelID, "indexed", indexed)
				h.editResponse(s, i, fmt.Sprintf("Indexing timed out after %d messages.", indexed))
				return
			}
		}

		h.logger.Info("channel indexed", "channel", channelID, "indexed", indexed, "failed", failed)
		if failed > 0 {
			h.editResponse(s, i, fmt.Sprintf("Indexed %d messages (%d failed).", indexed, failed))
		} else {
			h.editResponse(s, i, fmt.Sprintf("Indexed %d messages.", indexed))
		}
	}()
}

func (h *commandHandler) deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		h.logger.Error("failed to defer interaction", "error", err)
	}
}

func (h *commandHandler) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("failed to respond to interaction", "error", err)
	}
}

func (h *commandHandler) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		h.logger.Error("failed to edit interaction response", "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
