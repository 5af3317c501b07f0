package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadmatch/internal/model"
)

type sentMessage struct {
	channel string
	content string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{channelID, content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestDiscordNotifier_Channels(t *testing.T) {
	tests := []struct {
		name           string
		agentChannel   string
		defaultChannel string
		wantChannel    string
		wantErr        error
	}{
		{"agent channel", "111", "999", "111", nil},
		{"default channel", "", "999", "999", nil},
		{"no channel", "", "", "", ErrNoChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			d := &DiscordNotifier{sender: sender, defaultChannel: tt.defaultChannel}
			err := d.NotifyAgent(context.Background(), &model.Agent{ID: "a1", NotifyChannelID: tt.agentChannel}, "🔔 Новая заявка")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, sender.sent)
				return
			}
			require.NoError(t, err)
			require.Len(t, sender.sent, 1)
			assert.Equal(t, tt.wantChannel, sender.sent[0].channel)
		})
	}
}

func TestDiscordNotifier_SendError(t *testing.T) {
	d := &DiscordNotifier{sender: &fakeSender{err: errors.New("403")}, defaultChannel: "1"}
	err := d.NotifyAgent(context.Background(), &model.Agent{ID: "a1"}, "text")
	assert.ErrorContains(t, err, "403")
}

func TestDiscordNotifier_LongMessageIsChunked(t *testing.T) {
	sender := &fakeSender{}
	d := &DiscordNotifier{sender: sender, defaultChannel: "1"}

	line := strings.Repeat("я", 99)
	text := strings.TrimSuffix(strings.Repeat(line+"\n", 50), "\n")
	require.NoError(t, d.NotifyAgent(context.Background(), &model.Agent{ID: "a1"}, text))

	require.Greater(t, len(sender.sent), 1)
	var total int
	for _, m := range sender.sent {
		assert.LessOrEqual(t, len([]rune(m.content)), maxChunkLen)
		total += strings.Count(m.content, "я")
	}
	assert.Equal(t, 99*50, total)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, splitMessage("aaaa bbbb", 6))
	assert.Equal(t, []string{"abcdef", "ghij"}, splitMessage("abcdefghij", 6))
	assert.Equal(t, []string{"one two", "three"}, splitMessage("one two\nthree", 10))
}
