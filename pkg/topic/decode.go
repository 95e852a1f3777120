package topic

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeValue converts a loosely typed value into T.
// Values that already have type T (or *T) pass through untouched; anything
// else (typically map[string]any coming from a transport) goes through
// mapstructure using the json tags of T.
func decodeValue[T any](v any) (T, error) {
	var out T
	switch typed := v.(type) {
	case nil:
		return out, nil
	case T:
		return typed, nil
	case *T:
		if typed == nil {
			return out, nil
		}
		return *typed, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(v); err != nil {
		return out, fmt.Errorf("cannot decode %T into %T: %w", v, out, err)
	}
	return out, nil
}

func loadState[S any](raw json.RawMessage) (S, error) {
	var s S
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("corrupt instance state: %w", err)
	}
	return s, nil
}
