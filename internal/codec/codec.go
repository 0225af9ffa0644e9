// Package codec encodes cache and event payloads. Raw bytes and strings pass
// through untouched, everything else is JSON.
package codec

import "encoding/json"

// Marshal encodes payload.
func Marshal(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(payload)
	}
}

// Unmarshal decodes data into holder, which must be a pointer.
func Unmarshal(data []byte, holder any) error {
	switch v := holder.(type) {
	case *[]byte:
		*v = append((*v)[:0], data...)
	case *json.RawMessage:
		*v = append((*v)[:0], data...)
	case *string:
		*v = string(data)
	default:
		return json.Unmarshal(data, holder)
	}
	return nil
}
