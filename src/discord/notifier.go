// Package discord posts governance events to a Discord channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/stake-plus/membership-dao/src/dao"
	"github.com/stake-plus/membership-dao/src/logging"
)

// sender is the part of *discordgo.Session the notifier uses.
type sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier is a dao.Observer announcing events in one channel. Votes are
// skipped unless Votes is set, since busy proposals would flood the channel.
type Notifier struct {
	s         sender
	channelID string
	Votes     bool
	log       zerolog.Logger
}

// NewSession opens a bot session for token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	return s, nil
}

func NewNotifier(s *discordgo.Session, channelID string) *Notifier {
	return newNotifier(s, channelID)
}

func newNotifier(s sender, channelID string) *Notifier {
	return &Notifier{s: s, channelID: channelID, log: logging.Component("discord")}
}

// Observe implements dao.Observer.
func (n *Notifier) Observe(_ context.Context, ev dao.Event) error {
	if ev.Kind == dao.EventVoteCast && !n.Votes {
		return nil
	}
	msg := &discordgo.MessageSend{
		Content: formatNotice(ev),
		Flags:   discordgo.MessageFlagsSuppressEmbeds,
	}
	if _, err := n.s.ChannelMessageSendComplex(n.channelID, msg); err != nil {
		if logging.IsRateLimit(err) {
			n.log.Warn().Str("event", string(ev.Kind)).Msg("discord rate limited, notice dropped")
			return nil
		}
		return fmt.Errorf("post %s: %w", ev.Kind, err)
	}
	return nil
}
