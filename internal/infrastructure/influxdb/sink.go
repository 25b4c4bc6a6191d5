package influxdb

import (
	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

// StateWriter is the part of Client the sink needs.
type StateWriter interface {
	WriteEntityState(info appliance.Info, st entity.State)
}

// Sink forwards changed entity states to InfluxDB.
type Sink struct {
	writer StateWriter
}

// NewSink creates a sink writing through w (usually a *Client).
func NewSink(w StateWriter) *Sink {
	return &Sink{writer: w}
}

// RegisterEntities writes the initial state of every entity so series
// start at bridge startup rather than at the first change.
func (s *Sink) RegisterEntities(info appliance.Info, entities []*entity.Projected) error {
	for _, p := range entities {
		s.writer.WriteEntityState(info, p.Snapshot())
	}
	return nil
}

// WriteState writes st when its value or availability changed.
func (s *Sink) WriteState(info appliance.Info, st entity.State) {
	if st.Changed {
		s.writer.WriteEntityState(info, st)
	}
}
