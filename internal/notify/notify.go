// Package notify fans DVR state changes out to interested subscribers (the
// HTTP API's event stream, the UI bridge). It is a thin wrapper over an
// in-process watermill pub/sub.
package notify

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvrd/internal/log"
)

// Topics published by the DVR core.
const (
	TopicEntryAdded    = "dvr.entry.added"
	TopicEntryUpdated  = "dvr.entry.updated"
	TopicEntryDeleted  = "dvr.entry.deleted"
	TopicUpcomingStart = "dvr.upcoming"
)

// EntryEvent is the payload for entry lifecycle topics.
type EntryEvent struct {
	UUID   string `json:"uuid"`
	Status string `json:"status,omitempty"`
}

// UpcomingEvent announces when the next scheduled recording begins.
// Start is zero when nothing is scheduled.
type UpcomingEvent struct {
	UUID  string `json:"uuid,omitempty"`
	Start int64  `json:"start"`
}

// Notifier publishes DVR events.
type Notifier struct {
	bus  *gochannel.GoChannel
	logc zerolog.Logger
}

// NewNotifier builds a notifier over an in-process bus.
func NewNotifier() *Notifier {
	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NopLogger{})
	return &Notifier{
		bus:  bus,
		logc: log.WithComponent("notify"),
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (n *Notifier) Close() error {
	return n.bus.Close()
}

func (n *Notifier) publish(topic string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		n.logc.Error().Err(err).Str("topic", topic).Msg("marshal event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	if err := n.bus.Publish(topic, msg); err != nil {
		n.logc.Error().Err(err).Str("topic", topic).Msg("publish event")
	}
}

// EntryAdded announces a newly created entry.
func (n *Notifier) EntryAdded(uuid, status string) {
	n.publish(TopicEntryAdded, EntryEvent{UUID: uuid, Status: status})
}

// EntryUpdated announces a changed entry.
func (n *Notifier) EntryUpdated(uuid, status string) {
	n.publish(TopicEntryUpdated, EntryEvent{UUID: uuid, Status: status})
}

// EntryDeleted announces a removed entry.
func (n *Notifier) EntryDeleted(uuid string) {
	n.publish(TopicEntryDeleted, EntryEvent{UUID: uuid})
}

// Upcoming announces the next scheduled recording start.
func (n *Notifier) Upcoming(uuid string, start int64) {
	n.publish(TopicUpcomingStart, UpcomingEvent{UUID: uuid, Start: start})
}

// Subscribe returns a channel of raw messages for a topic. Callers must Ack
// each message.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return n.bus.Subscribe(ctx, topic)
}
