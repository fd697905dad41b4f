package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaterialType identifies the kind of goods stored in the monitored room
type MaterialType string

const (
	MaterialElectronic MaterialType = "electronic"
	MaterialMedicine   MaterialType = "medicine"
	MaterialFood       MaterialType = "food"
	MaterialPaper      MaterialType = "paper"
	MaterialTextile    MaterialType = "textile"
	MaterialChemical   MaterialType = "chemical"
	MaterialMetal      MaterialType = "metal"
	MaterialPlastic    MaterialType = "plastic"
)

// DefaultIntervalSeconds is the sample interval used when none is configured
const DefaultIntervalSeconds = 2

// KnownMaterialTypes returns all material types with a dedicated thermal contribution
func KnownMaterialTypes() []MaterialType {
	return []MaterialType{
		MaterialElectronic,
		MaterialMedicine,
		MaterialFood,
		MaterialPaper,
		MaterialTextile,
		MaterialChemical,
		MaterialMetal,
		MaterialPlastic,
	}
}

// NormalizeMaterialType lowercases and trims a material name and maps legacy aliases
func NormalizeMaterialType(s string) MaterialType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "plastico" {
		return MaterialPlastic
	}
	return MaterialType(s)
}

// EnvironmentalConfig describes the monitored room, its occupancy, the stored
// material and the alert thresholds. Records are immutable once saved.
type EnvironmentalConfig struct {
	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`

	// Room dimensions in meters
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`

	PeopleMin int `json:"peopleMin"`
	PeopleMax int `json:"peopleMax"`

	MaterialType   MaterialType `json:"materialType"`
	MaterialCount  int          `json:"materialCount"`
	MaterialWidth  float64      `json:"materialWidth"`
	MaterialLength float64      `json:"materialLength"`
	MaterialHeight float64      `json:"materialHeight"`

	TempLimit      float64 `json:"tempLimit"`
	HumidityLimit  float64 `json:"humidityLimit"`
	HeatIndexLimit float64 `json:"heatIndexLimit"`

	IntervalSeconds int `json:"interval"`
}

// DefaultConfig returns the configuration in effect before anything was saved
func DefaultConfig() EnvironmentalConfig {
	return EnvironmentalConfig{
		Width:           5,
		Length:          8,
		Height:          3,
		PeopleMin:       2,
		PeopleMax:       5,
		MaterialType:    MaterialElectronic,
		MaterialCount:   50,
		MaterialWidth:   0.3,
		MaterialLength:  0.3,
		MaterialHeight:  0.3,
		TempLimit:       35,
		HumidityLimit:   65,
		HeatIndexLimit:  38,
		IntervalSeconds: DefaultIntervalSeconds,
	}
}

// SampleInterval returns the configured interval, falling back to the default
func (c EnvironmentalConfig) SampleInterval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultIntervalSeconds * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ConfigPayload is the wire shape accepted by the save endpoint. Numeric
// fields may arrive as numbers or numeric strings.
type ConfigPayload struct {
	Width  *Number `json:"width"`
	Length *Number `json:"length"`
	Height *Number `json:"height"`

	PeopleMin *Number `json:"peopleMin"`
	PeopleMax *Number `json:"peopleMax"`

	MaterialType   string  `json:"materialType"`
	MaterialCount  *Number `json:"materialCount"`
	MaterialWidth  *Number `json:"materialWidth"`
	MaterialLength *Number `json:"materialLength"`
	MaterialHeight *Number `json:"materialHeight"`

	TempLimit      *Number `json:"tempLimit"`
	HumidityLimit  *Number `json:"humidityLimit"`
	HeatIndexLimit *Number `json:"heatIndexLimit"`

	Interval *Number `json:"interval"`
}

// Parse converts the payload into a typed configuration. Absent numeric
// fields become 0; peopleMin/peopleMax are not cross-checked.
func (p ConfigPayload) Parse() (EnvironmentalConfig, error) {
	verr := &ValidationError{}

	nonNegativeInt := func(field string, n *Number) int {
		v := n.Int()
		if v < 0 {
			verr.Add(field, "must not be negative")
			return 0
		}
		return v
	}

	cfg := EnvironmentalConfig{
		Width:          p.Width.Float(),
		Length:         p.Length.Float(),
		Height:         p.Height.Float(),
		PeopleMin:      nonNegativeInt("peopleMin", p.PeopleMin),
		PeopleMax:      nonNegativeInt("peopleMax", p.PeopleMax),
		MaterialType:   NormalizeMaterialType(p.MaterialType),
		MaterialCount:  nonNegativeInt("materialCount", p.MaterialCount),
		MaterialWidth:  p.MaterialWidth.Float(),
		MaterialLength: p.MaterialLength.Float(),
		MaterialHeight: p.MaterialHeight.Float(),
		TempLimit:      p.TempLimit.Float(),
		HumidityLimit:  p.HumidityLimit.Float(),
		HeatIndexLimit: p.HeatIndexLimit.Float(),
	}

	cfg.IntervalSeconds = p.Interval.Int()
	if cfg.IntervalSeconds < 0 {
		verr.Add("interval", "must not be negative")
		cfg.IntervalSeconds = 0
	}

	if verr.HasErrors() {
		return EnvironmentalConfig{}, verr
	}
	return cfg, nil
}

// PayloadFromConfig converts a stored configuration back into its wire shape
func PayloadFromConfig(c EnvironmentalConfig) ConfigPayload {
	return ConfigPayload{
		Width:          NewNumber(c.Width),
		Length:         NewNumber(c.Length),
		Height:         NewNumber(c.Height),
		PeopleMin:      NewNumber(float64(c.PeopleMin)),
		PeopleMax:      NewNumber(float64(c.PeopleMax)),
		MaterialType:   string(c.MaterialType),
		MaterialCount:  NewNumber(float64(c.MaterialCount)),
		MaterialWidth:  NewNumber(c.MaterialWidth),
		MaterialLength: NewNumber(c.MaterialLength),
		MaterialHeight: NewNumber(c.MaterialHeight),
		TempLimit:      NewNumber(c.TempLimit),
		HumidityLimit:  NewNumber(c.HumidityLimit),
		HeatIndexLimit: NewNumber(c.HeatIndexLimit),
		Interval:       NewNumber(float64(c.IntervalSeconds)),
	}
}

// ParseConfigJSON decodes a configuration body field by field so coercion
// failures are reported per field instead of aborting on the first one.
func ParseConfigJSON(data []byte) (EnvironmentalConfig, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return EnvironmentalConfig{}, fmt.Errorf("invalid config body: %w", err)
	}

	verr := &ValidationError{}
	number := func(field string) *Number {
		msg, ok := raw[field]
		if !ok {
			return nil
		}
		n := &Number{}
		if err := n.UnmarshalJSON(msg); err != nil {
			verr.Add(field, err.Error())
			return nil
		}
		return n
	}

	p := ConfigPayload{
		Width:          number("width"),
		Length:         number("length"),
		Height:         number("height"),
		PeopleMin:      number("peopleMin"),
		PeopleMax:      number("peopleMax"),
		MaterialCount:  number("materialCount"),
		MaterialWidth:  number("materialWidth"),
		MaterialLength: number("materialLength"),
		MaterialHeight: number("materialHeight"),
		TempLimit:      number("tempLimit"),
		HumidityLimit:  number("humidityLimit"),
		HeatIndexLimit: number("heatIndexLimit"),
		Interval:       number("interval"),
	}
	if msg, ok := raw["materialType"]; ok {
		if err := json.Unmarshal(msg, &p.MaterialType); err != nil {
			verr.Add("materialType", "must be a string")
		}
	}

	if verr.HasErrors() {
		return EnvironmentalConfig{}, verr
	}
	return p.Parse()
}
