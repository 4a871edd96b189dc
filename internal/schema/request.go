package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks caller input rejected at the boundary.
var ErrInvalid = errors.New("invalid input")

// AlterColumnRequest asks for one column to converge from Prior to Desired.
// Desired.Name differing from Prior.Name means the column is being renamed.
type AlterColumnRequest struct {
	Database          string     `json:"database,omitempty" yaml:"database,omitempty"`
	Table             string     `json:"table,omitempty" yaml:"table"`
	CurrentColumnName string     `json:"column,omitempty" yaml:"column,omitempty"`
	Desired           ColumnSpec `json:"data" yaml:"data"`
	Prior             ColumnSpec `json:"field" yaml:"field"`

	// ExpectedFingerprint, when set, must match the fingerprint of the plan
	// computed at apply time.
	ExpectedFingerprint string `json:"expected_fingerprint,omitempty" yaml:"expected_fingerprint,omitempty"`
}

// Renaming reports whether the request changes the column's name.
func (r AlterColumnRequest) Renaming() bool {
	return r.Desired.Name != r.Prior.Name
}

// Normalize fills CurrentColumnName from the prior shape and trims names.
func (r *AlterColumnRequest) Normalize() {
	r.Database = strings.TrimSpace(r.Database)
	r.Table = strings.TrimSpace(r.Table)
	r.CurrentColumnName = strings.TrimSpace(r.CurrentColumnName)
	r.Desired.normalize()
	r.Prior.normalize()
	if r.CurrentColumnName == "" {
		r.CurrentColumnName = r.Prior.Name
	}
}

// Validate checks the request shape. Identifier character sets are checked by
// the dialect when statements are rendered.
func (r AlterColumnRequest) Validate() error {
	if r.Table == "" {
		return fmt.Errorf("%w: table is required", ErrInvalid)
	}
	if r.Prior.Name == "" {
		return fmt.Errorf("%w: field.name (current column name) is required", ErrInvalid)
	}
	if r.CurrentColumnName != r.Prior.Name {
		return fmt.Errorf("%w: column %q does not match field.name %q", ErrInvalid, r.CurrentColumnName, r.Prior.Name)
	}
	if err := r.Desired.Validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := r.Prior.Validate(); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	return nil
}

var sizePattern = regexp.MustCompile(`^(?i:max|\d+(\s*,\s*\d+)?)$`)

func (c *ColumnSpec) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.DataType = strings.TrimSpace(c.DataType)
	c.Size = Size(strings.TrimSpace(string(c.Size)))
}

// Validate checks that the column has a name, a type and a well-formed size.
func (c ColumnSpec) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: column name is required", ErrInvalid)
	}
	if c.DataType == "" {
		return fmt.Errorf("%w: column %s: type is required", ErrInvalid, c.Name)
	}
	if c.Size != "" && !sizePattern.MatchString(string(c.Size)) {
		return fmt.Errorf("%w: column %s: malformed size %q", ErrInvalid, c.Name, c.Size)
	}
	return nil
}

// Validate checks a table definition before it is serialized.
func (s *TableCreateSpec) Validate() error {
	s.Table = strings.TrimSpace(s.Table)
	if s.Table == "" {
		return fmt.Errorf("%w: table is required", ErrInvalid)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: table %s: at least one column is required", ErrInvalid, s.Table)
	}
	seen := make(map[string]bool, len(s.Columns))
	for i := range s.Columns {
		c := &s.Columns[i]
		c.normalize()
		if err := c.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("%w: table %s: duplicate column %s", ErrInvalid, s.Table, c.Name)
		}
		seen[key] = true
		if c.Increment && c.DefaultValue != "" {
			return fmt.Errorf("%w: column %s: an identity column cannot have a default", ErrInvalid, c.Name)
		}
		if c.Increment && c.Nullable {
			return fmt.Errorf("%w: column %s: an identity column cannot be nullable", ErrInvalid, c.Name)
		}
	}
	return nil
}

// LoadAlterRequest reads an alteration request from a YAML or JSON file.
func LoadAlterRequest(path string) (*AlterColumnRequest, error) {
	req := &AlterColumnRequest{}
	if err := loadFile(path, req); err != nil {
		return nil, err
	}
	return req, nil
}

// LoadTableSpec reads a table definition from a YAML or JSON file.
func LoadTableSpec(path string) (*TableCreateSpec, error) {
	spec := &TableCreateSpec{}
	if err := loadFile(path, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func loadFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
