package http

import (
	"net/http"

	"instapilot/internal/platform/net/http/bind"
)

// JSONHandler decodes and validates a T body, calls fn and envelopes the result
func JSONHandler[T any](fn func(*http.Request, T) (any, error)) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		respond(w, r)(fn(r, in))
	}
}

// CallHandler is JSONHandler for routes without a body
func CallHandler(fn func(*http.Request) (any, error)) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(fn(r))
	}
}

func respond(w http.ResponseWriter, r *http.Request) func(any, error) {
	return func(out any, err error) {
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondOK(w, r, out)
	}
}
