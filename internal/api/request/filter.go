package request

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/watchsec/commnode/internal/core"
)

// ParseEventFilter reads the device_id, business_id and resolved query
// parameters of an event listing.
func ParseEventFilter(r *http.Request) (core.EventFilter, error) {
	var f core.EventFilter
	q := r.URL.Query()

	if v := q.Get("device_id"); v != "" {
		id, err := ParseID(v)
		if err != nil {
			return f, fmt.Errorf("device_id: %w", err)
		}
		f.DeviceID = &id
	}
	if v := q.Get("business_id"); v != "" {
		id, err := ParseID(v)
		if err != nil {
			return f, fmt.Errorf("business_id: %w", err)
		}
		f.BusinessID = &id
	}
	if v := q.Get("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("resolved: invalid boolean %q", v)
		}
		f.Resolved = &b
	}
	return f, nil
}
