package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidArguments marks a tool call whose arguments do not satisfy the
// tool's parameters.
var ErrInvalidArguments = errors.New("invalid arguments")

// Args are normalized tool arguments. Values stay raw JSON so key order
// inside documents reaches the database unchanged.
type Args map[string]json.RawMessage

// Has reports whether name is set.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Raw returns the raw value of name, or nil.
func (a Args) Raw(name string) json.RawMessage {
	return a[name]
}

// String returns name as a string, or "" when unset.
func (a Args) String(name string) string {
	var s string
	_ = json.Unmarshal(a[name], &s)
	return s
}

// Int returns name as an integer, or 0 when unset.
func (a Args) Int(name string) int64 {
	var f float64
	_ = json.Unmarshal(a[name], &f)
	return int64(f)
}

// Bool returns name as a boolean, or false when unset.
func (a Args) Bool(name string) bool {
	var b bool
	_ = json.Unmarshal(a[name], &b)
	return b
}

// normalize validates raw arguments against params, injects defaults and
// clamps bounded numbers. Arguments not declared in params pass through.
func normalize(params []Param, raw json.RawMessage) (Args, error) {
	args := Args{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !isNull(trimmed) {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return nil, fmt.Errorf("%w: arguments must be an object", ErrInvalidArguments)
		}
	}

	for _, p := range params {
		v, ok := args[p.Name]
		if !ok || isNull(v) {
			delete(args, p.Name)
			if p.Required {
				return nil, fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, p.Name)
			}
			if p.Default != nil {
				def, err := json.Marshal(p.Default)
				if err != nil {
					return nil, fmt.Errorf("default for %q: %w", p.Name, err)
				}
				args[p.Name] = def
			}
			continue
		}

		nv, err := p.coerce(v)
		if err != nil {
			return nil, err
		}
		args[p.Name] = nv
	}
	return args, nil
}

// coerce type-checks v and clamps it into the declared bounds.
func (p Param) coerce(v json.RawMessage) (json.RawMessage, error) {
	mismatch := fmt.Errorf("%w: parameter %q must be %s", ErrInvalidArguments, p.Name, article(p.Type))

	switch p.Type {
	case TypeString:
		var s string
		if json.Unmarshal(v, &s) != nil {
			return nil, mismatch
		}
	case TypeBoolean:
		var b bool
		if json.Unmarshal(v, &b) != nil {
			return nil, mismatch
		}
	case TypeInteger, TypeNumber:
		var f float64
		if json.Unmarshal(v, &f) != nil {
			return nil, mismatch
		}
		return p.clamp(f), nil
	case TypeObject:
		if kind(v) != '{' {
			return nil, mismatch
		}
	case TypeArray:
		if kind(v) != '[' {
			return nil, mismatch
		}
		if p.Items == TypeObject {
			var items []json.RawMessage
			if json.Unmarshal(v, &items) != nil {
				return nil, mismatch
			}
			for i, item := range items {
				if kind(item) != '{' {
					return nil, fmt.Errorf("%w: parameter %q item %d must be an object", ErrInvalidArguments, p.Name, i)
				}
			}
		}
	}
	return v, nil
}

func (p Param) clamp(f float64) json.RawMessage {
	if p.Type == TypeInteger {
		f = math.Trunc(f)
	}
	if p.Min != nil && f < *p.Min {
		f = *p.Min
	}
	if p.Max != nil && f > *p.Max {
		f = *p.Max
	}
	if p.Type == TypeInteger {
		return json.RawMessage(strconv.FormatInt(int64(f), 10))
	}
	return json.RawMessage(strconv.FormatFloat(f, 'g', -1, 64))
}

func kind(v json.RawMessage) byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

func article(t ParamType) string {
	switch t {
	case TypeInteger, TypeObject, TypeArray:
		return "an " + string(t)
	default:
		return "a " + string(t)
	}
}
