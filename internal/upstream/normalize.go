package upstream

import "encoding/json"

// listEnvelope matches the provider's wrapped list shape.
type listEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination"`
}

// decodeList normalizes the three list shapes the provider is known to
// produce, in priority order: a {data:[...]} envelope, a bare array,
// then any of the given named array properties. Anything else decodes
// to an empty list rather than an error, since the provider is not
// under our control.
func decodeList[T any](body []byte, names ...string) ([]T, json.RawMessage, error) {
	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && isArray(envelope.Data) {
		var items []T
		if err := json.Unmarshal(envelope.Data, &items); err != nil {
			return nil, nil, err
		}

		return items, envelope.Pagination, nil
	}

	if isArray(body) {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, nil, err
		}

		return items, nil, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err == nil {
		for _, name := range names {
			if raw, ok := object[name]; ok && isArray(raw) {
				var items []T
				if err := json.Unmarshal(raw, &items); err != nil {
					return nil, nil, err
				}

				return items, object["pagination"], nil
			}
		}
	}

	return []T{}, nil, nil
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b == '['
		}
	}

	return false
}
