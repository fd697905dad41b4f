package decoder

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/sguter90/heatmaestro/pkg/models"
)

// MediaTypeForm is handled by FormDecoder
const MediaTypeForm = "application/x-www-form-urlencoded"

// maxFormSize bounds the body read by FormDecoder
const maxFormSize = 64 << 10

// FormDecoder decodes form-urlencoded bodies with the same keys as JSONDecoder
type FormDecoder struct{}

func (d *FormDecoder) MediaType() string {
	return MediaTypeForm
}

func (d *FormDecoder) Decode(r io.Reader) (models.ReadingInput, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFormSize))
	if err != nil {
		return models.ReadingInput{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	params, err := url.ParseQuery(string(data))
	if err != nil {
		return models.ReadingInput{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ParseValues(params)
}

// ParseValues validates a reading from URL parameters
func ParseValues(params url.Values) (models.ReadingInput, error) {
	parseNumber := func(keys ...string) (*models.Number, error) {
		for _, key := range keys {
			if val := params.Get(key); val != "" {
				n, err := models.ParseNumber(val)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
				}
				if n != nil {
					return n, nil
				}
			}
		}
		return nil, nil
	}

	temperature, err := parseNumber("temperature", "temperatura")
	if err != nil {
		return models.ReadingInput{}, err
	}
	humidity, err := parseNumber("humidity", "humedad")
	if err != nil {
		return models.ReadingInput{}, err
	}

	p := models.ReadingPayload{
		Temperature: temperature,
		Humidity:    humidity,
		Origin:      pick(params.Get("origin"), params.Get("origen")),
	}
	if ts := params.Get("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return models.ReadingInput{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
		}
		p.Timestamp = &t
	}
	return p.Parse()
}
