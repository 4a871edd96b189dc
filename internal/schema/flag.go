package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flag is a boolean that also accepts the catalog's "YES"/"NO" spelling, which
// is what table descriptions return and what clients send back unchanged.
type Flag bool

// ParseFlag interprets a loosely typed flag value.
func ParseFlag(v any) (Flag, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return Flag(t), nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "", "NO", "N", "FALSE", "0":
			return false, nil
		case "YES", "Y", "TRUE", "1":
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: cannot interpret %v as a flag", ErrInvalid, v)
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseFlag(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	parsed, err := ParseFlag(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Size is a column length or precision such as "50", "10,2" or "MAX". Clients
// send it either as a number or as a string.
type Size string

func (s *Size) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case float64:
		*s = Size(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		*s = Size(strings.TrimSpace(t))
	default:
		return fmt.Errorf("%w: cannot interpret %v as a size", ErrInvalid, v)
	}
	return nil
}
