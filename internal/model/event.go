package model

import (
	"encoding/json"
	"time"
)

// EventKind distinguishes the three event tables.
type EventKind string

const (
	EventAlert       EventKind = "alert"
	EventMalfunction EventKind = "malfunction"
	EventLog         EventKind = "log"
)

// Resolvable reports whether events of this kind carry a resolved flag.
func (k EventKind) Resolvable() bool {
	return k == EventAlert || k == EventMalfunction
}

// Event is a recorded alert, malfunction or device log, denormalised with the
// device and business names the dashboard displays. The same projection is
// pushed on the real-time channel.
type Event struct {
	Kind         EventKind
	ID           int64
	DeviceID     int64
	DeviceName   string
	Type         string
	Message      *string
	Time         time.Time
	Resolved     bool
	BusinessID   int64
	BusinessName string
}

// MarshalJSON emits kind-prefixed keys (alert_type, log_time, ...). Logs have
// no resolved flag.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"id":            e.ID,
		"device_id":     e.DeviceID,
		"device_name":   e.DeviceName,
		"business_id":   e.BusinessID,
		"business_name": e.BusinessName,
		"message":       e.Message,
	}
	m[string(e.Kind)+"_time"] = e.Time.Format(time.RFC3339Nano)
	m[string(e.Kind)+"_type"] = e.Type
	if e.Kind.Resolvable() {
		m["resolved"] = e.Resolved
	}
	return json.Marshal(m)
}
