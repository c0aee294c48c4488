package signaling

import (
	"encoding/json"

	"callsignal/internal/domain"
)

// Delivery is one pending listener invocation.
type Delivery func(domain.SignalListener)

const (
	methodInvite = "invite"
	methodAnswer = "answer"
	methodMedia  = "media"
	methodBye    = "bye"

	loggedInMessage = "logged in"
)

// methodRoutes maps method names that carry the whole envelope to their
// callback. bye is routed separately because it needs a call id.
var methodRoutes = map[string]func(domain.SignalListener, domain.Envelope){
	methodInvite: domain.SignalListener.OnOfferReceived,
	methodAnswer: domain.SignalListener.OnAnswerReceived,
	methodMedia:  domain.SignalListener.OnMediaReceived,
}

// Route maps a classified envelope to at most one listener invocation.
// A nil Delivery with a nil error means the envelope is ignored.
func Route(env domain.Envelope) (Delivery, error) {
	switch env.Kind {
	case domain.EnvelopeResult:
		return routeResult(env), nil
	case domain.EnvelopeMethodCall:
		return routeMethod(env)
	case domain.EnvelopeErrorReport:
		return routeError(env)
	default:
		return nil, nil
	}
}

func routeResult(env domain.Envelope) Delivery {
	var result struct {
		Message string `json:"message"`
	}
	// Results that do not decode are acknowledgements we do not care about.
	if err := json.Unmarshal(env.Field("result"), &result); err != nil {
		return nil
	}
	if result.Message != loggedInMessage {
		return nil
	}
	return func(l domain.SignalListener) { l.OnLoginSuccessful(env) }
}

func routeMethod(env domain.Envelope) (Delivery, error) {
	name, ok := env.Method()
	if !ok {
		return nil, parseError("Route", "method is not a string", nil)
	}
	if name == methodBye {
		callID, err := byeCallID(env)
		if err != nil {
			return nil, err
		}
		return func(l domain.SignalListener) { l.OnByeReceived(callID) }, nil
	}
	cb, ok := methodRoutes[name]
	if !ok {
		return nil, nil
	}
	return func(l domain.SignalListener) { cb(l, env) }, nil
}

func byeCallID(env domain.Envelope) (domain.CallID, error) {
	raw := env.Field("params")
	if raw == nil {
		return domain.CallID{}, parseError("Route", "bye without params", nil)
	}
	var params struct {
		CallID *string `json:"callID"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return domain.CallID{}, parseError("Route", "bye params", err)
	}
	if params.CallID == nil {
		return domain.CallID{}, parseError("Route", "bye without callID", nil)
	}
	id, err := domain.ParseCallID(*params.CallID)
	if err != nil {
		return domain.CallID{}, parseError("Route", "bye callID", err)
	}
	return id, nil
}

func routeError(env domain.Envelope) (Delivery, error) {
	var report struct {
		Code *int64 `json:"code"`
	}
	if err := json.Unmarshal(env.Field("error"), &report); err != nil {
		return nil, parseError("Route", "error report", err)
	}
	if report.Code == nil {
		return nil, parseError("Route", "error report without code", nil)
	}
	switch *report.Code {
	case domain.CodeCredentialError, domain.CodeTokenError:
		return func(l domain.SignalListener) { l.OnErrorReceived(env) }, nil
	default:
		return nil, nil
	}
}
