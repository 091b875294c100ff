package notifications

import "context"

// ChannelType identifies a delivery channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeLog ChannelType = "log"
)

// Notification is a rendered message ready for delivery.
type Notification struct {
	To      string
	Subject string
	Body    string
	Type    MessageType
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() ChannelType
	Send(ctx context.Context, notification Notification) error
}

// Channel is a configured delivery destination.
type Channel struct {
	Type   ChannelType
	Target string
}
