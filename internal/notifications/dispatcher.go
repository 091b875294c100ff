package notifications

import (
	"context"
	"fmt"
)

// Dispatcher routes notifications to the sender of their channel type.
type Dispatcher struct {
	senders map[ChannelType]Sender
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(senders ...Sender) *Dispatcher {
	senderMap := make(map[ChannelType]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{
		senders: senderMap,
	}
}

// Supports reports whether a sender is registered for the channel type.
func (d *Dispatcher) Supports(channelType ChannelType) bool {
	_, ok := d.senders[channelType]
	return ok
}

// SendToChannel delivers a notification through the sender for channelType.
func (d *Dispatcher) SendToChannel(ctx context.Context, channelType ChannelType, notification Notification) error {
	sender, ok := d.senders[channelType]
	if !ok {
		return NewNonRetryableError(fmt.Errorf("%w: %s", ErrNoSender, channelType))
	}
	if notification.To == "" {
		return NewNonRetryableError(ErrEmptyTarget)
	}
	return sender.Send(ctx, notification)
}
