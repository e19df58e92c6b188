// Package config provides the typed pipeline configuration: the source
// location, the declared role of every raw column, imputation sentinels,
// and the knobs of the split/rebalance/evaluate stages. Role declarations
// replace loose name lists; Validate fails fast with a ConfigurationError
// before any modeling work begins.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
)

// Role is the modeling role of a declared column. The set is closed; every
// raw column is declared with exactly one role.
type Role string

const (
	// RoleIdentifier marks a row identifier, excluded from modeling.
	RoleIdentifier Role = "identifier"
	// RoleNominal marks an unordered categorical column.
	RoleNominal Role = "nominal"
	// RoleOrdinal marks an ordered categorical column; Levels gives the order.
	RoleOrdinal Role = "ordinal"
	// RoleNumeric marks a continuous column (mean-imputed).
	RoleNumeric Role = "numeric"
	// RoleNumericCategorical marks a numeric code treated as a category.
	RoleNumericCategorical Role = "numeric-categorical"
	// RoleBoolean marks a two-valued column; the target has this role.
	RoleBoolean Role = "boolean"
	// RoleDate marks the raw date column consumed by calendar derivation.
	RoleDate Role = "date"
	// RoleTime marks the raw time-of-day column consumed by calendar derivation.
	RoleTime Role = "time"
	// RoleText marks a free-text column carried through but never modeled.
	RoleText Role = "text"
)

var validRoles = map[Role]bool{
	RoleIdentifier:         true,
	RoleNominal:            true,
	RoleOrdinal:            true,
	RoleNumeric:            true,
	RoleNumericCategorical: true,
	RoleBoolean:            true,
	RoleDate:               true,
	RoleTime:               true,
	RoleText:               true,
}

// Categorical reports whether the role encodes to a categorical feature.
func (r Role) Categorical() bool {
	return r == RoleNominal || r == RoleOrdinal || r == RoleNumericCategorical
}

// ColumnSpec declares one raw column.
type ColumnSpec struct {
	Name string `json:"name" yaml:"name"`
	Role Role   `json:"role" yaml:"role"`
	// MissingValues lists literal cell values treated as missing in
	// addition to empty cells (e.g. "(null)", "U").
	MissingValues []string `json:"missing_values,omitempty" yaml:"missing_values,omitempty"`
	// Levels gives the category order for ordinal columns.
	Levels []string `json:"levels,omitempty" yaml:"levels,omitempty"`
	// RareFloor drops rows whose category occurs fewer than this many
	// times instead of imputing it. Zero disables the floor.
	RareFloor int `json:"rare_floor,omitempty" yaml:"rare_floor,omitempty"`
}

// PointSpec declares the composite point-string column reconstructed from
// two continuous coordinate columns when missing.
type PointSpec struct {
	Name string `json:"name" yaml:"name"`
	Lon  string `json:"lon" yaml:"lon"`
	Lat  string `json:"lat" yaml:"lat"`
}

// CalendarSpec names the raw date/time columns and the derived columns
// appended by calendar derivation.
type CalendarSpec struct {
	DateColumn    string `json:"date_column" yaml:"date_column"`
	TimeColumn    string `json:"time_column" yaml:"time_column"`
	HourColumn    string `json:"hour_column" yaml:"hour_column"`
	WeekdayColumn string `json:"weekday_column" yaml:"weekday_column"`
	MonthColumn   string `json:"month_column" yaml:"month_column"`
}

// Config is the full pipeline configuration.
type Config struct {
	// SourceURL is the HTTPS location of the incident CSV.
	SourceURL string `json:"source_url" yaml:"source_url"`
	// SourceFile, when set, reads the CSV from disk instead of the URL.
	SourceFile string `json:"source_file,omitempty" yaml:"source_file,omitempty"`

	Columns  []ColumnSpec `json:"columns" yaml:"columns"`
	Point    PointSpec    `json:"point" yaml:"point"`
	Calendar CalendarSpec `json:"calendar" yaml:"calendar"`

	// Target is the boolean outcome column; PositiveLabel is the level
	// counted as the positive class.
	Target        string `json:"target" yaml:"target"`
	PositiveLabel string `json:"positive_label" yaml:"positive_label"`
	NegativeLabel string `json:"negative_label" yaml:"negative_label"`

	// Features lists the model's input columns (declared or derived).
	Features []string `json:"features" yaml:"features"`

	// UnknownCategory is the sentinel category imputed over missing
	// categorical cells.
	UnknownCategory string `json:"unknown_category" yaml:"unknown_category"`

	TestFraction float64 `json:"test_fraction" yaml:"test_fraction"`
	Seed         int64   `json:"seed" yaml:"seed"`

	// NearZeroFreqCutoff removes a training column when one category's
	// share exceeds it; NearZeroMinDistinct removes columns with fewer
	// distinct values.
	NearZeroFreqCutoff  float64 `json:"near_zero_freq_cutoff" yaml:"near_zero_freq_cutoff"`
	NearZeroMinDistinct int     `json:"near_zero_min_distinct" yaml:"near_zero_min_distinct"`

	DecisionThreshold float64 `json:"decision_threshold" yaml:"decision_threshold"`
	Resampling        string  `json:"resampling" yaml:"resampling"`
}

// Resampling policies.
const (
	ResampleUndersample = "undersample"
	ResampleNone        = "none"
)

// Default returns the configuration matching the published NYPD shooting
// incident analysis: 0.8/0.2 split, 0.5 threshold, majority-class
// under-sampling, UNKNOWN imputation.
func Default() Config {
	return Config{
		SourceURL: "https://data.cityofnewyork.us/api/views/833y-fsy8/rows.csv?accessType=DOWNLOAD",
		Columns: []ColumnSpec{
			{Name: "INCIDENT_KEY", Role: RoleIdentifier},
			{Name: "OCCUR_DATE", Role: RoleDate},
			{Name: "OCCUR_TIME", Role: RoleTime},
			{Name: "BORO", Role: RoleNominal},
			{Name: "PRECINCT", Role: RoleNumericCategorical},
			{Name: "JURISDICTION_CODE", Role: RoleNumericCategorical, RareFloor: 2},
			{Name: "LOCATION_DESC", Role: RoleNominal, MissingValues: []string{"NONE", "(null)"}},
			{Name: "STATISTICAL_MURDER_FLAG", Role: RoleBoolean},
			// The perpetrator fields carry recording artifacts ("1020",
			// "224", "940" age groups, "U" sex) treated as missing.
			{Name: "PERP_AGE_GROUP", Role: RoleNominal, MissingValues: []string{"(null)", "1020", "224", "940"}},
			{Name: "PERP_SEX", Role: RoleNominal, MissingValues: []string{"(null)", "U"}},
			{Name: "PERP_RACE", Role: RoleNominal, MissingValues: []string{"(null)"}},
			{Name: "VIC_AGE_GROUP", Role: RoleOrdinal, Levels: []string{"<18", "18-24", "25-44", "45-64", "65+"}},
			{Name: "VIC_SEX", Role: RoleNominal, MissingValues: []string{"U"}},
			{Name: "VIC_RACE", Role: RoleNominal},
			{Name: "X_COORD_CD", Role: RoleNumeric},
			{Name: "Y_COORD_CD", Role: RoleNumeric},
			{Name: "Latitude", Role: RoleNumeric},
			{Name: "Longitude", Role: RoleNumeric},
			{Name: "Lon_Lat", Role: RoleText},
		},
		Point:    PointSpec{Name: "Lon_Lat", Lon: "Longitude", Lat: "Latitude"},
		Calendar: CalendarSpec{DateColumn: "OCCUR_DATE", TimeColumn: "OCCUR_TIME", HourColumn: "OCCUR_HOUR", WeekdayColumn: "OCCUR_DOW", MonthColumn: "OCCUR_MONTH"},

		Target:        "STATISTICAL_MURDER_FLAG",
		PositiveLabel: "Yes",
		NegativeLabel: "No",
		Features: []string{
			"BORO", "JURISDICTION_CODE", "LOCATION_DESC",
			"VIC_AGE_GROUP", "VIC_SEX", "VIC_RACE",
			"OCCUR_HOUR", "OCCUR_DOW", "OCCUR_MONTH",
		},
		UnknownCategory: "UNKNOWN",

		TestFraction:        0.2,
		Seed:                42,
		NearZeroFreqCutoff:  0.95,
		NearZeroMinDistinct: 2,
		DecisionThreshold:   0.5,
		Resampling:          ResampleUndersample,
	}
}

// Validate checks the configuration for the failure modes the pipeline must
// reject before any work begins.
func (c *Config) Validate() error {
	const op = "config.Validate"

	if c.SourceURL == "" && c.SourceFile == "" {
		return errs.NewConfiguration(op, "", "either source_url or source_file must be set")
	}
	if len(c.Columns) == 0 {
		return errs.NewConfiguration(op, "", "no columns declared")
	}

	declared := make(map[string]Role, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return errs.NewConfiguration(op, "", "column with empty name")
		}
		if !validRoles[col.Role] {
			return errs.NewConfiguration(op, col.Name, fmt.Sprintf("unknown role %q", col.Role))
		}
		if _, dup := declared[col.Name]; dup {
			return errs.NewConfiguration(op, col.Name, "column declared in more than one role")
		}
		if col.Role == RoleOrdinal && len(col.Levels) == 0 {
			return errs.NewConfiguration(op, col.Name, "ordinal column requires levels")
		}
		if col.Role != RoleOrdinal && len(col.Levels) > 0 {
			return errs.NewConfiguration(op, col.Name, "levels are only valid on ordinal columns")
		}
		declared[col.Name] = col.Role
	}

	if c.Target == "" {
		return errs.NewConfiguration(op, "", "no target declared")
	}
	targetRole, ok := declared[c.Target]
	if !ok {
		return errs.NewConfiguration(op, c.Target, "target column is not declared")
	}
	if targetRole != RoleBoolean {
		return errs.NewConfiguration(op, c.Target, "target column must have the boolean role")
	}
	if c.PositiveLabel == "" || c.NegativeLabel == "" || c.PositiveLabel == c.NegativeLabel {
		return errs.NewConfiguration(op, c.Target, "positive and negative labels must be distinct and non-empty")
	}

	derived := map[string]bool{}
	for _, name := range []string{c.Calendar.HourColumn, c.Calendar.WeekdayColumn, c.Calendar.MonthColumn} {
		if name != "" {
			derived[name] = true
		}
	}
	if len(c.Features) == 0 {
		return errs.NewConfiguration(op, "", "no features declared")
	}
	seen := make(map[string]bool, len(c.Features))
	for _, feat := range c.Features {
		if seen[feat] {
			return errs.NewConfiguration(op, feat, "feature listed twice")
		}
		seen[feat] = true
		if feat == c.Target {
			return errs.NewConfiguration(op, feat, "target cannot be a feature")
		}
		role, isDeclared := declared[feat]
		if !isDeclared && !derived[feat] {
			return errs.NewConfiguration(op, feat, "feature is neither declared nor derived")
		}
		if isDeclared && !role.Categorical() && role != RoleNumeric {
			return errs.NewConfiguration(op, feat, fmt.Sprintf("role %q cannot be used as a feature", role))
		}
	}

	if c.Point.Name != "" {
		for _, name := range []string{c.Point.Name, c.Point.Lon, c.Point.Lat} {
			if _, isDeclared := declared[name]; !isDeclared {
				return errs.NewConfiguration(op, name, "point spec references an undeclared column")
			}
		}
	}
	if c.Calendar.DateColumn != "" {
		if declared[c.Calendar.DateColumn] != RoleDate {
			return errs.NewConfiguration(op, c.Calendar.DateColumn, "calendar date column must have the date role")
		}
		if declared[c.Calendar.TimeColumn] != RoleTime {
			return errs.NewConfiguration(op, c.Calendar.TimeColumn, "calendar time column must have the time role")
		}
	}

	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return errs.NewConfiguration(op, "", fmt.Sprintf("test_fraction must be in (0,1), got %g", c.TestFraction))
	}
	if c.NearZeroFreqCutoff <= 0 || c.NearZeroFreqCutoff > 1 {
		return errs.NewConfiguration(op, "", fmt.Sprintf("near_zero_freq_cutoff must be in (0,1], got %g", c.NearZeroFreqCutoff))
	}
	if c.NearZeroMinDistinct < 2 {
		return errs.NewConfiguration(op, "", "near_zero_min_distinct must be at least 2")
	}
	if c.DecisionThreshold < 0 || c.DecisionThreshold > 1 {
		return errs.NewConfiguration(op, "", fmt.Sprintf("decision_threshold must be in [0,1], got %g", c.DecisionThreshold))
	}
	if c.Resampling != ResampleUndersample && c.Resampling != ResampleNone {
		return errs.NewConfiguration(op, "", fmt.Sprintf("unknown resampling policy %q", c.Resampling))
	}
	if c.UnknownCategory == "" {
		return errs.NewConfiguration(op, "", "unknown_category must be non-empty")
	}

	return nil
}

// Column returns the declaration for the named column.
func (c *Config) Column(name string) (ColumnSpec, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnSpec{}, false
}

// LoadFromFile loads a configuration from a JSON or YAML file, selected by
// extension, on top of the defaults.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}
	return cfg, nil
}

// LoadFromEnv returns the defaults with NYPD_* environment overrides applied.
func LoadFromEnv() Config {
	cfg := Default()

	if val := os.Getenv("NYPD_SOURCE_URL"); val != "" {
		cfg.SourceURL = val
	}
	if val := os.Getenv("NYPD_SOURCE_FILE"); val != "" {
		cfg.SourceFile = val
	}
	if val := os.Getenv("NYPD_SEED"); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Seed = parsed
		}
	}
	if val := os.Getenv("NYPD_TEST_FRACTION"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.TestFraction = parsed
		}
	}
	if val := os.Getenv("NYPD_DECISION_THRESHOLD"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.DecisionThreshold = parsed
		}
	}
	if val := os.Getenv("NYPD_RESAMPLING"); val != "" {
		cfg.Resampling = val
	}

	return cfg
}
