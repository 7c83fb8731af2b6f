package client

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/protocol"
	"github.com/celerix-dev/celerix-store/pkg/store"
)

var _ store.RawStore = (*Client)(nil)

// do runs op and returns the OK payload or the response error.
func (c *Client) do(ctx context.Context, op protocol.Op, payload []byte, args ...string) ([]byte, error) {
	resp, err := c.call(ctx, op, payload, args...)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (c *Client) decode(ctx context.Context, target any, op protocol.Op, args ...string) error {
	payload, err := c.do(ctx, op, nil, args...)
	if err != nil {
		return err
	}
	return protocol.DecodePayload(payload, target)
}

// Ping checks the server round trip.
func (c *Client) Ping(ctx context.Context) error {
	payload, err := c.do(ctx, protocol.OpPing, nil)
	if err != nil {
		return err
	}
	if !bytes.Equal(payload, protocol.PongPayload) {
		return domain.ErrProtocol.WithDetailsf("unexpected PING payload %q", payload)
	}
	return nil
}

// GetRaw returns the serialized value or domain.ErrNotFound.
func (c *Client) GetRaw(ctx context.Context, persona, app, key string) (json.RawMessage, error) {
	payload, err := c.do(ctx, protocol.OpGet, nil, persona, app, key)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// SetRaw stores a serialized value.
func (c *Client) SetRaw(ctx context.Context, persona, app, key string, value json.RawMessage) error {
	if !codec.Valid(value) {
		return domain.ErrInvalidValue.WithDetails("value is not valid json")
	}
	_, err := c.do(ctx, protocol.OpSet, value, persona, app, key)
	return err
}

// Delete removes a key; a missing key is not an error.
func (c *Client) Delete(ctx context.Context, persona, app, key string) error {
	_, err := c.do(ctx, protocol.OpDel, nil, persona, app, key)
	return err
}

// GetPersonas lists personas.
func (c *Client) GetPersonas(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.decode(ctx, &out, protocol.OpListPersonas); err != nil {
		return nil, err
	}
	return out, nil
}

// GetApps lists a persona's Apps.
func (c *Client) GetApps(ctx context.Context, persona string) ([]string, error) {
	var out []string
	if err := c.decode(ctx, &out, protocol.OpListApps, persona); err != nil {
		return nil, err
	}
	return out, nil
}

// DumpRaw returns one App's snapshot.
func (c *Client) DumpRaw(ctx context.Context, persona, app string) (codec.Snapshot, error) {
	out := codec.Snapshot{}
	if err := c.decode(ctx, &out, protocol.OpDump, persona, app); err != nil {
		return nil, err
	}
	return out, nil
}

// DumpAppRaw returns one App across personas.
func (c *Client) DumpAppRaw(ctx context.Context, app string) (map[string]codec.Snapshot, error) {
	out := map[string]codec.Snapshot{}
	if err := c.decode(ctx, &out, protocol.OpDumpApp, app); err != nil {
		return nil, err
	}
	return out, nil
}

// GetGlobalRaw finds app/key in the first persona that has it.
func (c *Client) GetGlobalRaw(ctx context.Context, app, key string) (json.RawMessage, string, error) {
	var res protocol.GlobalResult
	if err := c.decode(ctx, &res, protocol.OpGetGlobal, app, key); err != nil {
		return nil, "", err
	}
	return res.Value, res.Persona, nil
}

// Move transfers app/key between personas.
func (c *Client) Move(ctx context.Context, srcPersona, dstPersona, app, key string) error {
	_, err := c.do(ctx, protocol.OpMove, nil, srcPersona, dstPersona, app, key)
	return err
}
