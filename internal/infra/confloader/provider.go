package confloader

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider loads dotted keys from a map. koanf calls Read for
// providers without a parser.
type mapProvider map[string]any

// ReadBytes is not supported.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the map with dotted keys expanded into nested maps.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any)
	for k, v := range m {
		setPath(out, k, v)
	}
	return out, nil
}

func setPath(dst map[string]any, key string, v any) {
	for {
		i := strings.IndexByte(key, '.')
		if i < 0 {
			dst[key] = v
			return
		}
		head := key[:i]
		next, ok := dst[head].(map[string]any)
		if !ok {
			next = make(map[string]any)
			dst[head] = next
		}
		dst, key = next, key[i+1:]
	}
}
