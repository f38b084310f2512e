package handoff

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// messageSender is the subset of [discordgo.Session] used by [Discord].
type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts each artifact as an attachment to a text channel using the
// bot REST API. No gateway connection is opened.
type Discord struct {
	sender    messageSender
	channelID string
	content   string
}

var _ Handoff = (*Discord)(nil)

// NewDiscord returns a Discord handoff authenticated with a bot token.
// content is the optional message text accompanying the file.
func NewDiscord(token, channelID, content string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("handoff: discord: create session: %w", err)
	}
	return &Discord{sender: session, channelID: channelID, content: content}, nil
}

// Name implements [Handoff].
func (d *Discord) Name() string { return "discord" }

// Deliver implements [Handoff].
func (d *Discord) Deliver(ctx context.Context, a audio.Artifact) error {
	msg, err := d.sender.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content: d.content,
		Files: []*discordgo.File{{
			Name:        a.Name,
			ContentType: a.ContentType,
			Reader:      bytes.NewReader(a.Data),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("handoff: discord: send to channel %s: %w", d.channelID, err)
	}
	slog.InfoContext(ctx, "recording posted", "channel_id", d.channelID, "message_id", msg.ID, "bytes", a.Size())
	return nil
}
