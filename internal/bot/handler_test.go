package bot

import (
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamisonl/Reverie/internal/config"
)

func TestInboundFrom(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		Content:   "hey Reverie, what's up?",
		ChannelID: "c1",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Mentions:  []*discordgo.User{{ID: "99", Username: "Reverie"}},
		ReferencedMessage: &discordgo.Message{
			ID:      "m0",
			Content: "earlier reply",
			Author:  &discordgo.User{ID: "99", Username: "Reverie", Bot: true},
		},
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn.example/cat.png", ContentType: "image/png"},
			{URL: "https://cdn.example/notes.pdf", ContentType: "application/pdf"},
		},
	}}

	in := inboundFrom(m)

	assert.Equal(t, "m1", in.ID)
	assert.Equal(t, "c1", in.ThreadID)
	assert.Equal(t, ts.UnixMilli(), in.Timestamp)
	assert.Equal(t, "alice", in.AuthorName)
	assert.False(t, in.IsBot)

	assert.Equal(t, []string{"reverie"}, in.Mentions, "mentions are lowercased")

	require.NotNil(t, in.ReplyTo)
	assert.Equal(t, "m0", in.ReplyTo.MessageID)
	assert.True(t, in.ReplyTo.IsBot)
	assert.Equal(t, "earlier reply", in.ReplyTo.Content)

	require.Len(t, in.Attachments, 1, "only image attachments survive")
	assert.Equal(t, "https://cdn.example/cat.png", in.Attachments[0].URL)
}

func TestInteractionIgnoredInDisallowedChannel(t *testing.T) {
	cfg := &config.Config{
		RestrictChannels: true,
		AllowedChannels:  []string{"c-allowed"},
		AdminUsers:       []string{"u1"},
	}
	h := newCommandHandler(cfg, nil, slog.Default())

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c-other",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
	}}

	// A nil session would panic on any attempted response; returning
	// without touching it shows the interaction was dropped up front.
	assert.NotPanics(t, func() { h.onInteraction(nil, i) })
}

func TestInteractionUserID(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "u1"}},
	}}
	assert.Equal(t, "u1", interactionUserID(guild))

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "u2"},
	}}
	assert.Equal(t, "u2", interactionUserID(dm))

	assert.Equal(t, "", interactionUserID(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}))
}
