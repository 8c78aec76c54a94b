package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/events"
)

// Outcome tells the transport what to do with a message.
type Outcome int

const (
	// Ack removes the message from the subscription.
	Ack Outcome = iota
	// Nack asks for redelivery.
	Nack
)

func (o Outcome) String() string {
	if o == Nack {
		return "nack"
	}
	return "ack"
}

// Processor decodes raw messages and hands them to a Sink.
type Processor struct {
	sink    Sink
	timeout time.Duration
	logger  zerolog.Logger
}

// NewProcessor creates a processor. A zero timeout uses the default.
func NewProcessor(sink Sink, timeout time.Duration, logger zerolog.Logger) *Processor {
	if timeout <= 0 {
		timeout = DefaultConfig().StoreTimeout
	}
	return &Processor{sink: sink, timeout: timeout, logger: logger}
}

// Process handles one message payload. Payloads that can never decode
// are acked so they do not loop forever; sink failures are nacked.
func (p *Processor) Process(ctx context.Context, data []byte) Outcome {
	event, err := events.Decode(data)
	if err != nil {
		p.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable progress event")
		return Ack
	}

	storeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.sink.Store(storeCtx, event); err != nil {
		p.logger.Error().
			Err(err).
			Str("event_id", EventID(event)).
			Str("session_id", event.SessionID).
			Msg("failed to store progress event")
		return Nack
	}

	p.logger.Debug().
		Str("event_id", EventID(event)).
		Str("type", string(event.Type)).
		Str("session_id", event.SessionID).
		Int("index", event.Index).
		Msg("progress event stored")
	return Ack
}
