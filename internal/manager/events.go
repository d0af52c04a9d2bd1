package manager

// Event is a session lifecycle notification: load_start, load_ready,
// load_failed, generate_start, generate_busy, generate_done, unload_start,
// unload_timeout and unload.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives manager events. Publish is called synchronously
// outside the manager's locks and must not call back into Load or Unload.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
