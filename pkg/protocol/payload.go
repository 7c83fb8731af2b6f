package protocol

import (
	"encoding/json"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// GlobalResult is the GET_GLOBAL payload.
type GlobalResult struct {
	Persona string          `json:"persona"`
	Value   json.RawMessage `json:"value"`
}

// EncodePayload marshals a structured OK payload.
func EncodePayload(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, domain.ErrInternal.Wrap(err)
	}
	return b, nil
}

// DecodePayload unmarshals a structured OK payload. Malformed payloads
// are protocol errors.
func DecodePayload(b []byte, target any) error {
	if err := codec.DecodeInto(b, target); err != nil {
		return domain.ErrProtocol.WithDetailsf("payload: %v", err)
	}
	return nil
}
