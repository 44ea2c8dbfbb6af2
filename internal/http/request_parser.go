// This file parses request input into ledger values. Form posts from htmx and
// JSON bodies from the API share one path.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"keuangan/internal/core"
)

// Form field names posted by the entry form.
const (
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldType        = "type"
	FieldConfirmed   = "confirmed"
	FieldRestoreFile = "restoreFile"
)

var errInvalidID = errors.New("invalid transaction id")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Candidate reads an entry from the parsed body. Type names are matched
// loosely; unknown text is kept so validation rejects it.
func (p *RequestBodyParser) Candidate() core.Candidate {
	raw := p.Get(FieldType)
	typ, ok := core.ParseType(raw)
	if !ok {
		typ = core.Type(raw)
	}
	return core.Candidate{
		Date:        p.Get(FieldDate),
		Description: p.Get(FieldDescription),
		Amount:      p.Get(FieldAmount),
		Type:        typ,
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab and newlines, and trims
// whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseID reads the {id} route parameter.
func ParseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// IsConfirmed reports whether the request carries confirmed=true, in the
// query string or a form body.
func IsConfirmed(r *http.Request) bool {
	if v := r.URL.Query().Get(FieldConfirmed); v != "" {
		ok, _ := strconv.ParseBool(v)
		return ok
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	ok, _ := strconv.ParseBool(r.PostForm.Get(FieldConfirmed))
	return ok
}
