// Package heatindex computes the "real heat index" of a monitored room from
// a temperature/humidity sample and the room's environmental configuration.
//
// The formula blends the ambient temperature with the body heat of the
// occupants and the thermal contribution of the stored material, then adds
// humidity, occupancy and space-utilization terms. The dashboard runs the
// same computation, so results must match it to the second decimal.
package heatindex

import (
	"math"

	"github.com/sguter90/heatmaestro/pkg/models"
)

// PeopleTemperature is the average body heat contribution of an occupant (°C)
const PeopleTemperature = 36.5

// DefaultMaterialTemperature applies to material types without a table entry
const DefaultMaterialTemperature = 25.0

var materialTemperatures = map[models.MaterialType]float64{
	models.MaterialElectronic: 32,
	models.MaterialMedicine:   25,
	models.MaterialFood:       22,
	models.MaterialPaper:      24,
	models.MaterialTextile:    26,
	models.MaterialChemical:   28,
	models.MaterialMetal:      30,
	models.MaterialPlastic:    27,
}

// Sensor is the part of a reading the computation depends on
type Sensor struct {
	Temperature float64
	Humidity    float64
}

// MaterialTemperature returns the thermal contribution of a material type
func MaterialTemperature(t models.MaterialType) float64 {
	if v, ok := materialTemperatures[models.NormalizeMaterialType(string(t))]; ok {
		return v
	}
	return DefaultMaterialTemperature
}

// RoomVolume returns width*length*height. A zero or missing dimension
// counts as 1; negative dimensions are kept and produce a negative volume.
func RoomVolume(cfg models.EnvironmentalConfig) float64 {
	return dimension(cfg.Width) * dimension(cfg.Length) * dimension(cfg.Height)
}

// MaterialVolume returns the total volume occupied by the stored units
func MaterialVolume(cfg models.EnvironmentalConfig) float64 {
	return float64(cfg.MaterialCount) * cfg.MaterialWidth * cfg.MaterialLength * cfg.MaterialHeight
}

// OccupationFactor is the mean of the occupancy bounds
func OccupationFactor(cfg models.EnvironmentalConfig) float64 {
	return float64(cfg.PeopleMin+cfg.PeopleMax) / 2
}

// MaterialRatio is the share of the room taken by material, in percent. It
// is 0 when the room volume is not positive.
func MaterialRatio(cfg models.EnvironmentalConfig) float64 {
	roomVolume := RoomVolume(cfg)
	if !(roomVolume > 0) || math.IsInf(roomVolume, 0) {
		return 0
	}
	return MaterialVolume(cfg) / roomVolume * 100
}

// Compute returns the heat index rounded to two decimals. It has no side
// effects and never fails.
func Compute(sensor Sensor, cfg models.EnvironmentalConfig) float64 {
	emitted := (sensor.Temperature + PeopleTemperature + MaterialTemperature(cfg.MaterialType)) / 3

	result := emitted +
		(sensor.Humidity/100)*5 +
		0.6*OccupationFactor(cfg) +
		0.07*MaterialRatio(cfg)

	return Round2(result)
}

// Round2 rounds half away from zero to two decimals
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func dimension(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
