package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NormalizeBoolean collapses the flag encodings produced by the two upstream
// API generations into a plain bool. Only a literal true or the strings
// "true" / "True" count as true.
func NormalizeBoolean(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case *bool:
		return val != nil && *val
	case string:
		return val == "true" || val == "True"
	case LooseBool:
		return NormalizeBoolean(val.value)
	case *LooseBool:
		return val != nil && NormalizeBoolean(val.value)
	default:
		return false
	}
}

// LooseBool keeps a flag exactly as the upstream encoded it (native boolean,
// string, or null) so records round-trip unchanged. Read it through Bool.
type LooseBool struct {
	value any
}

// Flag wraps a raw upstream value.
func Flag(v any) LooseBool {
	return LooseBool{value: v}
}

// Bool returns the normalized value.
func (b LooseBool) Bool() bool {
	return NormalizeBoolean(b.value)
}

// Raw returns the value as received.
func (b LooseBool) Raw() any {
	return b.value
}

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.value = v
	return nil
}

func (b LooseBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.value)
}

// FlexID accepts identifiers sent either as JSON numbers or strings.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// Int64 parses the identifier as a number.
func (id FlexID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}
