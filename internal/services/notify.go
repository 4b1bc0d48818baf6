package services

import (
	"context"
	"fmt"
	"log"

	pubnub "github.com/pubnub/go"
)

// Notifier pushes realtime events to a user's channel.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, message map[string]any) error
}

// PubNubNotifier publishes to per-user PubNub channels.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn}
}

func (n *PubNubNotifier) NotifyUser(_ context.Context, userID string, message map[string]any) error {
	channel := fmt.Sprintf("user-%s", userID)

	_, pnStatus, err := n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish to %s: %w", channel, err)
	}
	if pnStatus.Error != nil {
		return fmt.Errorf("pubnub publish to %s: status %d: %v", channel, pnStatus.StatusCode, pnStatus.Error)
	}
	return nil
}

// NopNotifier drops notifications. Used when PubNub is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyUser(_ context.Context, userID string, message map[string]any) error {
	log.Printf("notify (noop): user=%s type=%v", userID, message["type"])
	return nil
}
