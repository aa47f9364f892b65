package request

import (
	"encoding/json"
	"errors"
	"mime"
	"strings"
)

// ErrNotJSON is returned when a body is not a JSON object.
var ErrNotJSON = errors.New("request must be JSON")

// MissingFieldsError lists required fields absent from a body, in the order
// they were required.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

// CheckFields accepts body when contentType is JSON, body is a JSON object
// and every field in fields is present. Values are not inspected; extra
// fields are allowed.
func CheckFields(contentType string, body []byte, fields ...string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return ErrNotJSON
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return ErrNotJSON
	}

	var missing []string
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}
