package telemetry

import (
	"fmt"
	"time"
)

// ServiceName tags every event emitted by this process.
const ServiceName = "person-detection-api"

// DefaultIndexPrefix names the daily indices: <prefix>-YYYY.MM.DD.
const DefaultIndexPrefix = "person-detection-logs"

// Event is a flat set of fields delivered as one document.
type Event map[string]any

// NewEvent starts an event carrying the standard level, message and service fields.
func NewEvent(level, message string) Event {
	return Event{
		"level":   level,
		"message": message,
		"service": ServiceName,
	}
}

// With returns the event with key set; the receiver is modified in place.
func (e Event) With(key string, value any) Event {
	e[key] = value
	return e
}

func (e Event) clone() Event {
	c := make(Event, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// IndexName is the daily partition an event arriving at t belongs to.
func IndexName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, t.Format("2006.01.02"))
}

// message is what travels through the queue: either an event or the stop
// sentinel that ends the worker.
type message struct {
	event   Event
	arrived time.Time
	stop    bool
}
