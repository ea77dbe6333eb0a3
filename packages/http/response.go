package http

import (
	"net/http"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	StatusText string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

// FlattenHeaders reduces a header list to a single value per name. When a
// name carries several values the last one wins and the others are dropped.
// Names keep the canonical form net/http received them in ("X-Request-Id"
// for a server that sent "x-request-id").
func FlattenHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for k, values := range h {
		if len(values) == 0 {
			continue
		}
		headers[k] = values[len(values)-1]
	}
	return headers
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Header looks a header up ignoring case. Validation uses Headers directly
// and stays case sensitive.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[key]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
