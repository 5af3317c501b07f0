package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"leadmatch/internal/model"
)

// Discord has a 2000 character limit; chunks leave some margin
const maxChunkLen = 1900

// ErrNoChannel means the agent has no channel and no default is configured
var ErrNoChannel = errors.New("no notification channel for agent")

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts agent notifications to Discord channels through a
// bot account
type DiscordNotifier struct {
	session        *discordgo.Session
	sender         channelSender
	defaultChannel string
	chunkDelay     time.Duration
}

// NewDiscordNotifier creates a notifier for the bot token. Only the REST API
// is used, so no gateway connection is opened.
func NewDiscordNotifier(token, defaultChannel string) (*DiscordNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	log.Printf("✅ Discord notifications enabled")
	return &DiscordNotifier{
		session:        session,
		sender:         session,
		defaultChannel: defaultChannel,
		chunkDelay:     200 * time.Millisecond,
	}, nil
}

// NotifyAgent sends text to the agent's channel, split into chunks when long
func (d *DiscordNotifier) NotifyAgent(ctx context.Context, agent *model.Agent, text string) error {
	channelID := agent.NotifyChannelID
	if channelID == "" {
		channelID = d.defaultChannel
	}
	if channelID == "" {
		return fmt.Errorf("agent %s: %w", agent.ID, ErrNoChannel)
	}

	chunks := splitMessage(text, maxChunkLen)
	for i, chunk := range chunks {
		if i > 0 && d.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.chunkDelay):
			}
		}
		if _, err := d.sender.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send to %s: %w", channelID, err)
		}
	}
	return nil
}

// Close releases the session
func (d *DiscordNotifier) Close() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

// splitMessage cuts text into pieces of at most maxLen runes, preferring line
// breaks, then spaces
func splitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxLen {
		cut := maxLen
		window := string(runes[:maxLen])
		if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = len([]rune(window[:i]))
		} else if i := strings.LastIndex(window, " "); i > 0 {
			cut = len([]rune(window[:i]))
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
