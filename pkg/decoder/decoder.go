package decoder

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"

	"github.com/sguter90/heatmaestro/pkg/models"
)

var (
	// ErrMalformed is returned when a body cannot be decoded at all
	ErrMalformed = errors.New("malformed payload")
	// ErrUnsupportedMediaType is returned for content types without a decoder
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// Decoder turns a request or message body into a validated reading
type Decoder interface {
	// MediaType returns the content type this decoder handles (e.g., "application/json")
	MediaType() string

	// Decode reads and validates one reading
	Decode(r io.Reader) (models.ReadingInput, error)
}

// Registry holds decoders by media type
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	fallback string
}

// NewRegistry creates an empty registry. Bodies without a content type are
// decoded with the fallback media type.
func NewRegistry(fallback string) *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
		fallback: fallback,
	}
}

// DefaultRegistry returns a registry with the JSON and form decoders, JSON
// being the fallback
func DefaultRegistry() *Registry {
	r := NewRegistry(MediaTypeJSON)
	r.Register(&JSONDecoder{})
	r.Register(&FormDecoder{})
	return r
}

// Register adds a decoder to the registry
func (r *Registry) Register(d Decoder) {
	if d == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.decoders[d.MediaType()] = d
}

// Get retrieves a decoder for a Content-Type header value
func (r *Registry) Get(contentType string) (Decoder, bool) {
	mediaType := r.fallback
	if strings.TrimSpace(contentType) != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, false
		}
		mediaType = mt
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decoders[mediaType]
	return d, ok
}

// MediaTypes returns all registered media types
func (r *Registry) MediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.decoders))
	for mt := range r.decoders {
		types = append(types, mt)
	}
	return types
}

// Decode picks the decoder for contentType and decodes body with it
func (r *Registry) Decode(contentType string, body io.Reader) (models.ReadingInput, error) {
	d, ok := r.Get(contentType)
	if !ok {
		return models.ReadingInput{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	return d.Decode(body)
}

// IsClientError reports whether err was caused by the payload rather than the server
func IsClientError(err error) bool {
	var verr *models.ValidationError
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrUnsupportedMediaType) ||
		errors.As(err, &verr)
}

// pick returns the first non-empty value
func pick(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// pickNumber returns the first set number
func pickNumber(numbers ...*models.Number) *models.Number {
	for _, n := range numbers {
		if n.IsSet() {
			return n
		}
	}
	return nil
}
