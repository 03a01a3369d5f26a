package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackNotifier posts notices to one Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackNotifier creates a notifier using a bot token (xoxb-...).
// Extra client options are passed through, e.g. slack.OptionAPIURL.
func NewSlackNotifier(botToken, channel string, logger *zap.Logger, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken, opts...),
		channel: channel,
		logger:  logger,
	}
}

func (s *SlackNotifier) Platform() string { return "slack" }

// Notify posts the notice as a single message.
func (s *SlackNotifier) Notify(ctx context.Context, n *Notice) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(slackText(n), false),
	)
	if err != nil {
		s.logger.Error("slack send failed",
			zap.String("channel", s.channel), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func slackText(n *Notice) string {
	return fmt.Sprintf("*[%s] %s*\n%s", n.Kind, n.Title, n.Body)
}
