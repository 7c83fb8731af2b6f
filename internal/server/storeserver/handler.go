package storeserver

import (
	"context"

	"github.com/celerix-dev/celerix-store/pkg/codec"
	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/protocol"
)

// dispatch executes one request against the store.
func (s *Server) dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	switch req.Op {
	case protocol.OpPing:
		return protocol.OKResponse(req.ID, protocol.PongPayload)

	case protocol.OpGet:
		v, err := s.store.GetRaw(ctx, req.Arg(0), req.Arg(1), req.Arg(2))
		if err != nil {
			return protocol.ErrorResponse(req.ID, err)
		}
		return protocol.OKResponse(req.ID, v)

	case protocol.OpSet:
		if err := s.store.SetRaw(ctx, req.Arg(0), req.Arg(1), req.Arg(2), req.Args[3]); err != nil {
			return protocol.ErrorResponse(req.ID, err)
		}
		return protocol.OKResponse(req.ID, nil)

	case protocol.OpDel:
		if err := s.store.Delete(ctx, req.Arg(0), req.Arg(1), req.Arg(2)); err != nil {
			return protocol.ErrorResponse(req.ID, err)
		}
		return protocol.OKResponse(req.ID, nil)

	case protocol.OpListPersonas:
		personas, err := s.store.GetPersonas(ctx)
		return structured(req.ID, nonNil(personas), err)

	case protocol.OpListApps:
		apps, err := s.store.GetApps(ctx, req.Arg(0))
		return structured(req.ID, nonNil(apps), err)

	case protocol.OpDump:
		snap, err := s.store.DumpRaw(ctx, req.Arg(0), req.Arg(1))
		if snap == nil {
			snap = codec.Snapshot{}
		}
		return structured(req.ID, snap, err)

	case protocol.OpDumpApp:
		all, err := s.store.DumpAppRaw(ctx, req.Arg(0))
		if all == nil {
			all = map[string]codec.Snapshot{}
		}
		return structured(req.ID, all, err)

	case protocol.OpGetGlobal:
		v, persona, err := s.store.GetGlobalRaw(ctx, req.Arg(0), req.Arg(1))
		return structured(req.ID, protocol.GlobalResult{Persona: persona, Value: v}, err)

	case protocol.OpMove:
		if err := s.store.Move(ctx, req.Arg(0), req.Arg(1), req.Arg(2), req.Arg(3)); err != nil {
			return protocol.ErrorResponse(req.ID, err)
		}
		return protocol.OKResponse(req.ID, nil)
	}

	// ParseRequest only admits known operations.
	return protocol.ErrorResponse(req.ID, domain.ErrUnsupportedOperation.WithDetailsf("%s has no handler", req.Op))
}

func structured(id string, v any, err error) *protocol.Response {
	if err != nil {
		return protocol.ErrorResponse(id, err)
	}
	payload, err := protocol.EncodePayload(v)
	if err != nil {
		return protocol.ErrorResponse(id, err)
	}
	return protocol.OKResponse(id, payload)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
