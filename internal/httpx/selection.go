package httpx

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/joao-fontenele/storefront/internal/apperr"
)

// ProductSelection accepts either a JSON array of ids or a single id string,
// the shape a form with one checked box produces.
type ProductSelection []string

func (s *ProductSelection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*s = nil
			return nil
		}
		*s = ProductSelection{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// DecodeQuantities reads the quantities object. Values may be JSON strings or
// numbers; anything else is kept as an empty string so the line fails
// quantity parsing later. An absent or null value decodes to a nil map, which
// callers treat as no selection; any other non-object value is an error here.
func DecodeQuantities(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidRequest, err, "quantities must be an object keyed by product id")
	}

	out := make(map[string]string, len(fields))
	for key, value := range fields {
		value = bytes.TrimSpace(value)
		switch {
		case len(value) > 0 && value[0] == '"':
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				out[key] = s
			}
		case len(value) > 0 && (value[0] == '-' || (value[0] >= '0' && value[0] <= '9')):
			out[key] = strings.TrimSpace(string(value))
		default:
			out[key] = ""
		}
	}
	return out, nil
}
