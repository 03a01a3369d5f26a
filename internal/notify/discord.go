package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// discordLimit is Discord's maximum message length.
const discordLimit = 2000

// DiscordNotifier posts notices to one Discord channel over the REST API.
// No gateway websocket is opened.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordNotifier creates a notifier for a bot token.
func NewDiscordNotifier(token, channelID string, logger *zap.Logger) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID, logger: logger}, nil
}

func (d *DiscordNotifier) Platform() string { return "discord" }

// Notify sends the notice, truncated to Discord's length limit.
func (d *DiscordNotifier) Notify(ctx context.Context, n *Notice) error {
	_, err := d.session.ChannelMessageSend(d.channelID, discordText(n), discordgo.WithContext(ctx))
	if err != nil {
		d.logger.Error("discord send failed",
			zap.String("channel", d.channelID), zap.Error(err))
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func discordText(n *Notice) string {
	text := fmt.Sprintf("**[%s] %s**\n%s", n.Kind, n.Title, n.Body)
	if r := []rune(text); len(r) > discordLimit {
		text = string(r[:discordLimit-3]) + "..."
	}
	return text
}
