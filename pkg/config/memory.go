package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Memory is an amount of memory in whole GB. In YAML it is either a plain
// integer (GB) or a human readable size such as "64GiB" or "512MB".
type Memory int

// UnmarshalYAML implements yaml.Unmarshaler
func (m *Memory) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: memory must be a scalar", value.Line)
	}
	gb, err := ParseMemory(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = Memory(gb)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (m Memory) MarshalYAML() (interface{}, error) {
	return int(m), nil
}

// ParseMemory converts a YAML memory value to GB. Sizes with a unit are
// read with binary multiples and rounded up to the next whole GB.
func ParseMemory(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: memory %q must not be negative", ErrInvalid, s)
		}
		return n, nil
	}
	bytes, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse memory %q: %v", ErrInvalid, s, err)
	}
	if bytes < 0 {
		return 0, fmt.Errorf("%w: memory %q must not be negative", ErrInvalid, s)
	}
	return int((bytes + units.GiB - 1) / units.GiB), nil
}

// FormatMemory renders GB as a human readable size
func FormatMemory(gb int) string {
	return units.BytesSize(float64(gb) * units.GiB)
}
