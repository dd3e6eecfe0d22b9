package translator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RestoreConfig controls the formatting restorer applied to classical NMT
// output.
type RestoreConfig struct {
	RestoreTables      bool `json:"restore_tables"`       // rebuild | tables line by line
	RestoreDates       bool `json:"restore_dates"`        // put back the original date literal
	RestoreSeparators  bool `json:"restore_separators"`   // put back ---/=== separator lines
	RestorePageMarkers bool `json:"restore_page_markers"` // put back "page N of M"

	// CoarseFallback enables section and word redistribution when the line
	// counts of original and translation differ.
	CoarseFallback bool `json:"coarse_fallback"`

	CellPadding     int `json:"cell_padding"`      // spaces on each side of a cell
	MaxTableColumns int `json:"max_table_columns"` // wider rows are left untouched
}

// DefaultRestoreConfig returns the configuration used when none is given.
func DefaultRestoreConfig() *RestoreConfig {
	return &RestoreConfig{
		RestoreTables:      true,
		RestoreDates:       true,
		RestoreSeparators:  true,
		RestorePageMarkers: true,
		CoarseFallback:     true,
		CellPadding:        1,
		MaxTableColumns:    32,
	}
}

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string      // The field that failed validation
	Value   interface{} // The invalid value
	Message string      // Description of the error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// ConfigValidationResult holds the result of config validation
type ConfigValidationResult struct {
	IsValid bool
	Errors  []*ConfigValidationError
}

func (r *ConfigValidationResult) add(field string, value interface{}, msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, &ConfigValidationError{Field: field, Value: value, Message: msg})
}

// ValidateRestoreConfig checks that numeric values are within range.
func ValidateRestoreConfig(config *RestoreConfig) *ConfigValidationResult {
	result := &ConfigValidationResult{
		IsValid: true,
		Errors:  make([]*ConfigValidationError, 0),
	}

	if config == nil {
		result.add("config", nil, "configuration cannot be nil")
		return result
	}

	if config.CellPadding < 0 {
		result.add("CellPadding", config.CellPadding, "must be non-negative")
	} else if config.CellPadding > 4 {
		result.add("CellPadding", config.CellPadding, "must not exceed 4")
	}

	if config.MaxTableColumns <= 0 {
		result.add("MaxTableColumns", config.MaxTableColumns, "must be greater than 0")
	} else if config.MaxTableColumns > 256 {
		result.add("MaxTableColumns", config.MaxTableColumns, "must not exceed 256")
	}

	return result
}

// LoadRestoreConfig loads configuration from a JSON file.
// If the file doesn't exist, it returns the default configuration.
// Fields missing from the file keep their default values.
func LoadRestoreConfig(path string) (*RestoreConfig, error) {
	if path == "" {
		return DefaultRestoreConfig(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRestoreConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read restore config '%s': %w", path, err)
	}

	config := DefaultRestoreConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse restore config '%s': %w", path, err)
	}

	if res := ValidateRestoreConfig(config); !res.IsValid {
		return nil, fmt.Errorf("invalid restore config in '%s': %s", path, res.Errors[0].Error())
	}
	return config, nil
}

// SaveRestoreConfig writes configuration as indented JSON, creating the
// parent directory when needed.
func SaveRestoreConfig(config *RestoreConfig, path string) error {
	if config == nil {
		return fmt.Errorf("cannot save nil configuration")
	}
	if res := ValidateRestoreConfig(config); !res.IsValid {
		return fmt.Errorf("cannot save invalid config: %s", res.Errors[0].Error())
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory '%s': %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file '%s': %w", path, err)
	}
	return nil
}

// String returns a human-readable representation of the configuration
func (c *RestoreConfig) String() string {
	if c == nil {
		return "RestoreConfig{nil}"
	}
	return fmt.Sprintf("RestoreConfig{Tables:%v, Dates:%v, Separators:%v, PageMarkers:%v, "+
		"CoarseFallback:%v, CellPadding:%d, MaxTableColumns:%d}",
		c.RestoreTables, c.RestoreDates, c.RestoreSeparators, c.RestorePageMarkers,
		c.CoarseFallback, c.CellPadding, c.MaxTableColumns)
}
