package bot

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jamisonl/Reverie/internal/gate"
	"github.com/jamisonl/Reverie/internal/respond"
)

// eventTimeout bounds the end-to-end handling of one gateway event.
const eventTimeout = 2 * time.Minute

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if !b.cfg.ChannelAllowed(m.ChannelID) {
		return
	}

	in := inboundFrom(m)
	reply := b.replyFunc(s, m.ChannelID, m.ID)

	// Each event gets its own goroutine so a slow generation never
	// stalls the gateway read loop.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		b.responder.HandleMessage(ctx, in, reply)
	}()
}

func (b *Bot) onReactionAdd(s *discordgo.Session, m *discordgo.MessageReactionAdd) {
	if m.UserID == s.State.User.ID {
		return
	}
	if !b.cfg.ChannelAllowed(m.ChannelID) {
		return
	}

	reaction := respond.Reaction{
		UserID:   m.UserID,
		Emoji:    m.Emoji.Name,
		ThreadID: m.ChannelID,
	}
	if m.Member != nil && m.Member.User != nil {
		reaction.Username = m.Member.User.Username
	}

	reply := b.replyFunc(s, m.ChannelID, m.MessageID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if msg, err := s.ChannelMessage(m.ChannelID, m.MessageID); err == nil {
			reaction.MessageContent = msg.Content
		} else {
			b.logger.Warn("could not load reacted message", "message", m.MessageID, "error", err)
		}
		if reaction.Username == "" {
			if user, err := s.User(m.UserID); err == nil {
				reaction.Username = user.Username
			}
		}

		b.responder.HandleReaction(ctx, reaction, reply)
	}()
}

// replyFunc sends a threaded reply to the triggering message and maps
// the delivered message back into the responder's terms.
func (b *Bot) replyFunc(s *discordgo.Session, channelID, messageID string) respond.ReplyFunc {
	return func(_ context.Context, content string) (respond.Sent, error) {
		_ = s.ChannelTyping(channelID)

		msg, err := s.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
			MessageID: messageID,
			ChannelID: channelID,
		})
		if err != nil {
			return respond.Sent{}, err
		}
		return respond.Sent{ID: msg.ID, Timestamp: msg.Timestamp.UnixMilli()}, nil
	}
}

func inboundFrom(m *discordgo.MessageCreate) respond.Inbound {
	in := respond.Inbound{
		ID:         m.ID,
		Content:    m.Content,
		Timestamp:  m.Timestamp.UnixMilli(),
		ThreadID:   m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		IsBot:      m.Author.Bot,
	}

	for _, mention := range m.Mentions {
		in.Mentions = append(in.Mentions, strings.ToLower(mention.Username))
	}

	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil {
		in.ReplyTo = &gate.ReplyRef{
			MessageID: ref.ID,
			Author:    ref.Author.Username,
			Content:   ref.Content,
			IsBot:     ref.Author.Bot,
		}
	}

	for _, att := range m.Attachments {
		if !strings.HasPrefix(att.ContentType, "image/") {
			continue
		}
		in.Attachments = append(in.Attachments, respond.Attachment{
			URL:         att.URL,
			ContentType: att.ContentType,
		})
	}

	return in
}
