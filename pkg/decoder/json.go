package decoder

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sguter90/heatmaestro/pkg/models"
)

// MediaTypeJSON is handled by JSONDecoder
const MediaTypeJSON = "application/json"

// JSONDecoder decodes JSON bodies. Besides the documented keys it accepts
// temperatura, humedad and origen as sent by deployed device firmware.
type JSONDecoder struct{}

type jsonReading struct {
	Temperature *models.Number `json:"temperature"`
	Humidity    *models.Number `json:"humidity"`
	Origin      string         `json:"origin"`
	Timestamp   *time.Time     `json:"timestamp"`

	Temperatura *models.Number `json:"temperatura"`
	Humedad     *models.Number `json:"humedad"`
	Origen      string         `json:"origen"`
}

func (d *JSONDecoder) MediaType() string {
	return MediaTypeJSON
}

func (d *JSONDecoder) Decode(r io.Reader) (models.ReadingInput, error) {
	var body jsonReading
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return models.ReadingInput{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	p := models.ReadingPayload{
		Temperature: pickNumber(body.Temperature, body.Temperatura),
		Humidity:    pickNumber(body.Humidity, body.Humedad),
		Origin:      pick(body.Origin, body.Origen),
		Timestamp:   body.Timestamp,
	}
	return p.Parse()
}
