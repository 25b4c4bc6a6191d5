package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/hcbridge/internal/appliance"
	"github.com/nerrad567/hcbridge/internal/entity"
)

// MeasurementEntityState is the measurement every entity state lands in.
const MeasurementEntityState = "entity_state"

// WriteEntityState records one projected entity state.
//
// Numeric and boolean values go to the float "value" field so they can be
// graphed; anything else is kept as the string "state" field. States with
// no value still record availability. The write is non-blocking; points are
// batched and sent asynchronously.
//
// Example:
//
//	client.WriteEntityState(app.Info(), p.Snapshot())
func (c *Client) WriteEntityState(info appliance.Info, st entity.State) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(entityPoint(info, st))
}

// entityPoint converts a state into a line-protocol point.
func entityPoint(info appliance.Info, st entity.State) *write.Point {
	tags := map[string]string{
		"device_id": st.DeviceID,
		"key":       st.Key,
		"kind":      string(st.Kind),
	}
	if info.Brand != "" {
		tags["brand"] = info.Brand
	}
	if info.Type != "" {
		tags["type"] = info.Type
	}

	fields := map[string]any{
		"available": st.Available,
	}
	if v, ok := numericValue(st.Value); ok {
		fields["value"] = v
	} else if st.Value != nil {
		if s, ok := st.Value.(string); ok {
			fields["state"] = s
		}
	}

	at := st.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(MeasurementEntityState, tags, fields, at)
}

// numericValue reports v as float64 when it is a number or a bool.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
