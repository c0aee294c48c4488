package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request is an outbound JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with a fresh id. params may be nil, a
// json.RawMessage or any value encoding/json can marshal to an object.
func NewRequest(method string, params any) (Request, error) {
	if method == "" {
		return Request{}, NewSubSystemError("signaling", "NewRequest", ErrInvalidInput, "empty method")
	}
	req := Request{JSONRPC: "2.0", ID: uuid.NewString(), Method: method}
	switch p := params.(type) {
	case nil:
	case json.RawMessage:
		if !json.Valid(p) {
			return Request{}, NewSubSystemError("signaling", "NewRequest", ErrInvalidInput, "params are not valid JSON")
		}
		req.Params = p
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return Request{}, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}
