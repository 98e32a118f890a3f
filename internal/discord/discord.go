package discord

import "context"

// Client posts relay output to a Discord text channel.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Enabled() bool
	SendChannelMessage(channelID, content string) error
}
