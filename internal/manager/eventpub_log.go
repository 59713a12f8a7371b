package manager

import "github.com/rs/zerolog"

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher { return &LogPublisher{log: l} }

func (p *LogPublisher) Publish(e Event) {
	z := p.log.Debug().Str("event", e.Name)
	if e.ModelID != "" {
		z = z.Str("model", e.ModelID)
	}
	z.Fields(e.Fields).Msg("manager event")
}
