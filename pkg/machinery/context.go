package machinery

import (
	"context"
	"net/http"
)

type headersKey struct{}

// WithHeaders attaches the request headers of a call to ctx.
func WithHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, headersKey{}, h)
}

// Headers returns the request headers of the call, or nil outside a request.
func Headers(ctx context.Context) http.Header {
	h, _ := ctx.Value(headersKey{}).(http.Header)
	return h
}
