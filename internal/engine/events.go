package engine

import (
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/datamill-io/datamill/pkg/api"
)

// Events is the in-process topic carrying job lifecycle events to
// observers such as websocket clients. Events are advisory; the job
// store is authoritative
type Events struct {
	queue topic.Topic[*api.JobEvent]
	prod  topic.Producer[*api.JobEvent]
}

// NewEvents creates the job event topic
func NewEvents() *Events {
	queue := caravan.NewTopic[*api.JobEvent]()
	return &Events{
		queue: queue,
		prod:  queue.NewProducer(),
	}
}

// Publish emits a job event to all consumers
func (e *Events) Publish(ev *api.JobEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	message.Send(e.prod, ev)
}

// NewConsumer returns a fresh consumer of the event stream
func (e *Events) NewConsumer() topic.Consumer[*api.JobEvent] {
	return e.queue.NewConsumer()
}

// Close shuts down the producer side of the topic
func (e *Events) Close() {
	e.prod.Close()
}
