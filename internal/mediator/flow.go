package mediator

import "net/http"

// Flow is the view of one intercepted request/response pair that the
// surrounding proxy runtime hands to the engine. Header maps are mutable
// multimaps; mutations made here are applied to the forwarded traffic.
// Kill terminates the flow without forwarding it.
type Flow interface {
	Method() string
	URL() string
	ServerIP() string
	RequestHeader() http.Header
	ResponseHeader() http.Header
	Kill()
}
