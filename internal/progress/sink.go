package progress

import "context"

// Sink consumes batches of progress events. Consume must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it; a nil *Hub drops
// everything, which lets callers run without progress reporting.
type Emitter interface {
	Emit(evt Event)
}
