package signaling

import (
	"encoding/json"

	"callsignal/internal/domain"
)

// classifyOrder is the precedence of top-level members. The first one present
// decides the kind, even when its value is null.
var classifyOrder = [...]struct {
	key  string
	kind domain.EnvelopeKind
}{
	{"result", domain.EnvelopeResult},
	{"method", domain.EnvelopeMethodCall},
	{"error", domain.EnvelopeErrorReport},
}

// Classify decides the kind of an envelope from its top-level members.
func Classify(fields map[string]json.RawMessage) domain.EnvelopeKind {
	for _, c := range classifyOrder {
		if _, ok := fields[c.key]; ok {
			return c.kind
		}
	}
	return domain.EnvelopeUnrecognized
}

// ParseEnvelope decodes one inbound frame. Anything other than a JSON object
// is a protocol parse failure.
func ParseEnvelope(raw []byte) (domain.Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Envelope{}, parseError("ParseEnvelope", "frame is not a JSON object", err)
	}
	if fields == nil {
		return domain.Envelope{}, parseError("ParseEnvelope", "frame is null", nil)
	}
	return domain.Envelope{
		Kind:   Classify(fields),
		Raw:    json.RawMessage(raw),
		Fields: fields,
	}, nil
}

func parseError(op, detail string, cause error) error {
	return domain.NewSubSystemError(subsystem, op, domain.ErrProtocolParse, detail).WithCause(cause)
}
