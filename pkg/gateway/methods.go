package gateway

import (
	"context"

	"github.com/harun/xlsession/internal/tracing"
	"github.com/harun/xlsession/pkg/session"
)

var (
	sessionIDSchema = map[string]interface{}{
		"type":      "string",
		"minLength": 1,
	}

	noParamsSchema = map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
	}

	openSchema = map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"path"},
		"properties": map[string]interface{}{
			"path":      map[string]interface{}{"type": "string", "minLength": 1},
			"visible":   map[string]interface{}{"type": "boolean"},
			"read_only": map[string]interface{}{"type": "boolean"},
		},
	}

	acquireSchema = map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"session_id"},
		"properties": map[string]interface{}{
			"session_id": sessionIDSchema,
		},
	}

	closeSchema = map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"session_id"},
		"properties": map[string]interface{}{
			"session_id": sessionIDSchema,
			"save":       map[string]interface{}{"type": "boolean"},
		},
	}
)

// AcquireResult is returned by session.acquire
type AcquireResult struct {
	SessionID   string       `json:"session_id"`
	RequestedID string       `json:"requested_id"`
	Outcome     string       `json:"outcome"`
	FileChanged bool         `json:"file_changed"`
	Session     session.Info `json:"session"`
}

// registerSessionMethods wires the store operations into the router
func (s *Server) registerSessionMethods() error {
	methods := []struct {
		name    string
		schema  map[string]interface{}
		handler RequestHandler
	}{
		{"session.open", openSchema, s.handleOpen},
		{"session.acquire", acquireSchema, s.handleAcquire},
		{"session.close", closeSchema, s.handleClose},
		{"session.list", noParamsSchema, s.handleList},
		{"session.stats", noParamsSchema, s.handleStats},
		{"session.history", noParamsSchema, s.handleHistory},
	}

	for _, m := range methods {
		if err := s.router.RegisterMethod(m.name, m.schema, m.handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleOpen(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	path := stringParam(params, "path")
	id, err := s.store.Open(ctx, path, boolParam(params, "visible", false), boolParam(params, "read_only", false))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"session_id": id}, nil
}

func (s *Server) handleAcquire(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id := stringParam(params, "session_id")
	acq, err := s.store.Acquire(tracing.WithSessionID(ctx, id), id)
	if err != nil {
		return nil, err
	}
	return AcquireResult{
		SessionID:   acq.Session.ID(),
		RequestedID: acq.RequestedID,
		Outcome:     string(acq.Outcome),
		FileChanged: acq.FileChanged,
		Session:     acq.Session.Info(),
	}, nil
}

func (s *Server) handleClose(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id := stringParam(params, "session_id")
	if err := s.store.Close(tracing.WithSessionID(ctx, id), id, boolParam(params, "save", true)); err != nil {
		return nil, err
	}
	return map[string]interface{}{"closed": true}, nil
}

func (s *Server) handleList(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"sessions": s.store.List()}, nil
}

func (s *Server) handleStats(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return s.store.Stats(), nil
}

func (s *Server) handleHistory(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"expired": s.store.History()}, nil
}

func stringParam(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

func boolParam(params map[string]interface{}, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}
