// Package display connects a terminal to its optional customer-facing
// screen. The publisher is injected and session-scoped; when no display is
// attached a nil Broadcaster is a no-op and checkout proceeds unaffected.
package display

import (
	"github.com/op/go-logging"

	"github.com/timlee789/pos-sub000/cart"
	"github.com/timlee789/pos-sub000/catalog"
	"github.com/timlee789/pos-sub000/displaysync"
	mw "github.com/timlee789/pos-sub000/middleware"
)

var log = logging.MustGetLogger("log")

// Publisher pushes one message to the display channel, at-most-once.
type Publisher interface {
	Publish(msg *displaysync.Message)
}

// Subscriber delivers inbound display-channel messages to a handler.
type Subscriber interface {
	Subscribe(handler func(msg *displaysync.Message)) error
	Stop()
}

// ChannelPublisher publishes over a middleware exchange. Failures are logged
// and dropped; the display is an observer, never a dependency.
type ChannelPublisher struct {
	out mw.MessageMiddleware
}

func NewChannelPublisher(out mw.MessageMiddleware) *ChannelPublisher {
	return &ChannelPublisher{out: out}
}

func (p *ChannelPublisher) Publish(msg *displaysync.Message) {
	data, err := msg.Marshal()
	if err != nil {
		log.Errorf("Failed to marshal display message: %v", err)
		return
	}
	if err := p.out.Send(data); err != nil {
		log.Errorf("Failed to publish display message: %v", err)
	}
}

// ChannelSubscriber consumes the display channel on a background goroutine.
type ChannelSubscriber struct {
	in mw.MessageMiddleware
}

func NewChannelSubscriber(in mw.MessageMiddleware) *ChannelSubscriber {
	return &ChannelSubscriber{in: in}
}

func (s *ChannelSubscriber) Subscribe(handler func(msg *displaysync.Message)) error {
	go func() {
		err := s.in.StartConsuming(func(m mw.MiddlewareMessage, done chan *mw.MessageMiddlewareError) {
			msg, parseErr := displaysync.MessageFromBytes(m.Body)
			if parseErr != nil {
				// malformed messages are dropped, not requeued
				log.Errorf("Dropping malformed display message: %v", parseErr)
				done <- nil
				return
			}
			handler(msg)
			done <- nil
		})
		if err != nil {
			log.Errorf("Display subscriber stopped: %v", err)
		}
	}()
	return nil
}

func (s *ChannelSubscriber) Stop() {
	if err := s.in.StopConsuming(); err != nil {
		log.Errorf("Failed to stop display subscriber: %v", err)
	}
}

// Broadcaster is the terminal-side view of the display. A nil Broadcaster or
// one built with a nil publisher swallows every call.
type Broadcaster struct {
	publisher Publisher
}

func NewBroadcaster(publisher Publisher) *Broadcaster {
	return &Broadcaster{publisher: publisher}
}

// SyncState pushes a full snapshot of the checkout state.
func (b *Broadcaster) SyncState(snap displaysync.StateSnapshot) {
	if b == nil || b.publisher == nil {
		return
	}
	msg, err := displaysync.NewSyncState(snap)
	if err != nil {
		log.Errorf("Failed to build sync state: %v", err)
		return
	}
	b.publisher.Publish(msg)
}

// ModifierSelect mirrors the modifier picker for the item being configured.
func (b *Broadcaster) ModifierSelect(lines []cart.Line, total float64, itemName string, groups []catalog.ModifierGroup) {
	b.SyncState(displaysync.StateSnapshot{
		Mode:            displaysync.ModeModifierSelect,
		Cart:            lines,
		Total:           total,
		ActiveItemName:  itemName,
		AvailableGroups: groups,
	})
}
