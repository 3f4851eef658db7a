package machinery

import (
	"encoding/json"
	"time"
)

// CallResult classifies the envelope a call produced.
type CallResult string

const (
	CallResultOK                CallResult = "ok"
	CallResultError             CallResult = "error"
	CallResultDeserializeFailed CallResult = "deserialize_failed"
	CallResultSerializeFailed   CallResult = "serialize_failed"
	CallResultUnknownFunction   CallResult = "unknown_function"
	CallResultBadRequest        CallResult = "bad_request"
)

// Observer receives one event per call handled by a Server.
type Observer interface {
	Call(name string, result CallResult, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) Call(string, CallResult, time.Duration) {}

// NoopObserver is used when no observer is configured.
var NoopObserver Observer = noopObserver{}

// Classify inspects a response envelope.
func Classify(envelope string) CallResult {
	var e struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(envelope), &e); err != nil || e.Error == nil {
		return CallResultOK
	}
	switch *e.Error {
	case MsgDeserializeFailed:
		return CallResultDeserializeFailed
	case MsgSerializeFailed:
		return CallResultSerializeFailed
	case MsgUnknownFunction:
		return CallResultUnknownFunction
	default:
		return CallResultError
	}
}
