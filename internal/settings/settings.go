// Package settings defines the per-user settings document and the
// migrations that bring stored documents up to the current schema.
package settings

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone validation must not depend on the host zoneinfo

	"github.com/go-playground/validator/v10"

	"lana/internal/dates"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 2

// Defaults applied to missing fields.
const (
	DefaultCurrency             = "MXN"
	DefaultTimezone             = "America/Mexico_City"
	DefaultWeekStart            = "monday"
	DefaultBudgetWarningPercent = 80
)

// Settings is the current settings document.
type Settings struct {
	SchemaVersion        int    `json:"schema_version"`
	Currency             string `json:"currency" validate:"required,iso4217"`
	Timezone             string `json:"timezone" validate:"required,timezone"`
	WeekStart            string `json:"week_start" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	BudgetWarningPercent int    `json:"budget_warning_percent" validate:"min=1,max=100"`
	LastRoute            string `json:"last_route,omitempty" validate:"omitempty,startswith=/,max=200"`
	DisplayInitial       string `json:"display_initial,omitempty" validate:"omitempty,max=4"`
}

var validate = validator.New()

// Default returns a document with every field at its default.
func Default() Settings {
	return Settings{
		SchemaVersion:        CurrentVersion,
		Currency:             DefaultCurrency,
		Timezone:             DefaultTimezone,
		WeekStart:            DefaultWeekStart,
		BudgetWarningPercent: DefaultBudgetWarningPercent,
	}
}

// Validate checks field formats.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Location returns the user's timezone, falling back to the default zone.
func (s Settings) Location() *time.Location {
	if loc, err := time.LoadLocation(s.Timezone); err == nil {
		return loc
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the current calendar day in the user's timezone.
func (s Settings) Today() dates.Date {
	return dates.Today(s.Location())
}

// Calendar returns the user's period calendar.
func (s Settings) Calendar() dates.Calendar {
	wd, ok := dates.ParseWeekday(s.WeekStart)
	if !ok {
		return dates.DefaultCalendar
	}
	return dates.Calendar{WeekStart: wd}
}

// migration rewrites a raw document from version n to n+1.
type migration func(doc map[string]any)

var migrations = map[int]migration{
	0: migrateV0,
	1: migrateV1,
}

// migrateV0 renames the legacy camelCase keys.
func migrateV0(doc map[string]any) {
	rename(doc, "lastRoute", "last_route")
	rename(doc, "userInitial", "display_initial")
	rename(doc, "tz", "timezone")
}

// migrateV1 introduces the week start and budget warning threshold.
func migrateV1(doc map[string]any) {
	if _, ok := doc["week_start"]; !ok {
		doc["week_start"] = DefaultWeekStart
	}
	if _, ok := doc["budget_warning_percent"]; !ok {
		doc["budget_warning_percent"] = DefaultBudgetWarningPercent
	}
}

func rename(doc map[string]any, from, to string) {
	v, ok := doc[from]
	if !ok {
		return
	}
	delete(doc, from)
	if _, exists := doc[to]; !exists {
		doc[to] = v
	}
}

// Load decodes a stored document of any known version and migrates it to
// CurrentVersion. An empty document yields the defaults.
func Load(raw []byte) (Settings, error) {
	doc := map[string]any{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Settings{}, fmt.Errorf("decode settings: %w", err)
		}
	}

	version, err := versionOf(doc)
	if err != nil {
		return Settings{}, err
	}
	if version > CurrentVersion {
		return Settings{}, fmt.Errorf("settings schema version %d is newer than supported version %d", version, CurrentVersion)
	}
	for v := version; v < CurrentVersion; v++ {
		migrations[v](doc)
	}
	doc["schema_version"] = CurrentVersion

	data, err := json.Marshal(doc)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.fillDefaults()
	return s, nil
}

func versionOf(doc map[string]any) (int, error) {
	v, ok := doc["schema_version"]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := v.(float64)
	if !ok || n < 0 || n != float64(int(n)) {
		return 0, fmt.Errorf("invalid settings schema version %v", v)
	}
	return int(n), nil
}

func (s *Settings) fillDefaults() {
	d := Default()
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if s.Timezone == "" {
		s.Timezone = d.Timezone
	}
	if s.WeekStart == "" {
		s.WeekStart = d.WeekStart
	}
	if s.BudgetWarningPercent == 0 {
		s.BudgetWarningPercent = d.BudgetWarningPercent
	}
	s.Currency = strings.ToUpper(s.Currency)
	s.WeekStart = strings.ToLower(s.WeekStart)
}

// Encode serializes the document at the current version.
func (s Settings) Encode() ([]byte, error) {
	s.SchemaVersion = CurrentVersion
	return json.Marshal(s)
}
