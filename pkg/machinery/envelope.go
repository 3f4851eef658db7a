// Package machinery is the runtime the generated dispatch file links
// against: JSON envelopes, argument decoding, request context and the HTTP
// boundary that hands named calls to a HandlerFunc.
package machinery

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandlerFunc routes a call key and its JSON argument array to a service and
// returns the response envelope. The generated Handle function satisfies it.
type HandlerFunc func(ctx context.Context, name string, payload string) string

// Envelope messages returned to the client.
const (
	MsgDeserializeFailed = "Failed to deserialize input"
	MsgSerializeFailed   = "Failed to serialize output"
	MsgUnknownFunction   = "Unknown function"
	MsgMissingService    = "Missing service name"
	MsgInvalidService    = "Invalid service name"
)

type resultEnvelope struct {
	Result any `json:"result"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// Reply wraps a service result as {"result": v}.
func Reply(v any) string {
	b, err := json.Marshal(resultEnvelope{Result: v})
	if err != nil {
		return SerializeFailed()
	}
	return string(b)
}

// Fail wraps a service error as {"error": err.Error()}.
func Fail(err error) string {
	if err == nil {
		return Reply(nil)
	}
	return errorString(err.Error())
}

// DeserializeFailed is returned when the payload does not match the service parameters.
func DeserializeFailed() string { return errorString(MsgDeserializeFailed) }

// SerializeFailed is returned when the service result cannot be encoded.
func SerializeFailed() string { return errorString(MsgSerializeFailed) }

// UnknownFunction is returned for call keys no service answers to.
func UnknownFunction() string { return errorString(MsgUnknownFunction) }

// Recover turns a panic in a service into an error envelope written to out.
// It must be deferred directly.
func Recover(out *string) {
	if r := recover(); r != nil {
		*out = errorString(fmt.Sprint(r))
	}
}

func errorString(msg string) string {
	// marshalling a struct with a single string field cannot fail
	b, _ := json.Marshal(errorEnvelope{Error: msg})
	return string(b)
}
