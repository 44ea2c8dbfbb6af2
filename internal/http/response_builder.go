// Package http serves the ledger over HTTP: the htmx page and partials, file
// downloads and uploads, and a small JSON API.
//
// This file builds htmx responses. Events for the browser travel in the
// HX-Trigger header as a JSON object keyed by event name.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"keuangan/internal/notify"
)

// Event names understood by app.js.
const (
	EventNotification  = "show-notification"
	EventLedgerChanged = "ledger:changed"
	EventFormReset     = "form:reset"
	EventRestoreClosed = "restore:closed"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	notices    []notificationPayload
	statusCode int
	body       []byte
	headers    map[string]string
}

type notificationPayload struct {
	Type     notify.Severity `json:"type"`
	Message  string          `json:"message"`
	Duration int64           `json:"duration"`
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerLedgerChanged tells the page to reload the ledger partial.
func (b *HTMXResponseBuilder) TriggerLedgerChanged(count int) *HTMXResponseBuilder {
	return b.Trigger(EventLedgerChanged, map[string]int{"count": count})
}

// TriggerFormReset clears the entry form.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, true)
}

// TriggerRestoreClosed removes a pending restore prompt.
func (b *HTMXResponseBuilder) TriggerRestoreClosed() *HTMXResponseBuilder {
	return b.Trigger(EventRestoreClosed, true)
}

// Notify queues n as a toast, shown for notify.DisplayDuration.
func (b *HTMXResponseBuilder) Notify(n notify.Notification) *HTMXResponseBuilder {
	b.notices = append(b.notices, notificationPayload{
		Type:     n.Severity,
		Message:  n.Message,
		Duration: notify.DisplayDuration.Milliseconds(),
	})
	return b
}

// NotifyAll queues every notification in order.
func (b *HTMXResponseBuilder) NotifyAll(ns []notify.Notification) *HTMXResponseBuilder {
	for _, n := range ns {
		b.Notify(n)
	}
	return b
}

// Header sets a custom response header.
func (b *HTMXResponseBuilder) Header(key, value string) *HTMXResponseBuilder {
	b.headers[key] = value
	return b
}

// Body sets the response body as raw bytes.
func (b *HTMXResponseBuilder) Body(body []byte) *HTMXResponseBuilder {
	b.body = body
	return b
}

// BodyString sets the response body as a string.
func (b *HTMXResponseBuilder) BodyString(body string) *HTMXResponseBuilder {
	b.body = []byte(body)
	return b
}

// BodyHTML sets the response body as HTML content with appropriate Content-Type.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for key, value := range b.headers {
		w.Header().Set(key, value)
	}

	triggers := b.triggers
	switch len(b.notices) {
	case 0:
	case 1:
		triggers[EventNotification] = b.notices[0]
	default:
		// htmx wraps non-object details as {value: ...}
		triggers[EventNotification] = b.notices
	}
	if len(triggers) > 0 {
		triggerJSON, err := json.Marshal(triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		Notify(notify.Fail(message)).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
