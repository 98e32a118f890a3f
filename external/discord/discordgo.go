package discord

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/transrelay/internal/discord"
)

const maxMessageRunes = 2000

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Enabled() bool {
	return c.token != ""
}

// Connect only validates the token over REST; mirroring never needs the gateway.
func (c *Client) Connect(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	user, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("resolve bot user: %w", err)
	}
	c.botUserID = user.ID
	slog.Info("discord mirror connected", "bot_user_id", c.botUserID)
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	if c.session == nil || channelID == "" {
		return nil
	}
	_, err := c.session.ChannelMessageSend(channelID, truncateRunes(content, maxMessageRunes))
	return err
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
