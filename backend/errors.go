package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"resty.dev/v3"
)

// Kind classifies an APIError for display and retry decisions.
type Kind string

const (
	KindNetwork    Kind = "network"    // transport failure, no HTTP response
	KindValidation Kind = "validation" // 400, 422
	KindAuth       Kind = "auth"       // 401, 403
	KindNotFound   Kind = "not_found"  // 404
	KindConflict   Kind = "conflict"   // 409
	KindServer     Kind = "server"     // 5xx and anything unclassified
)

// APIError is any failed call to the server. The server reports errors as
// {"detail": "..."}, {"error": "..."} or {"field": ["msg", ...]}; Detail and
// Fields carry whichever shape came back, Raw keeps the undecoded body.
type APIError struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Fields     map[string][]string
	Raw        []byte
	Err        error // transport cause, KindNetwork only
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("backend: %s error: %v", e.Kind, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("backend: %s error (HTTP %d): %s", e.Kind, e.StatusCode, e.Detail)
	case len(e.Fields) > 0:
		return fmt.Sprintf("backend: %s error (HTTP %d): %s", e.Kind, e.StatusCode, e.fieldSummary())
	default:
		return fmt.Sprintf("backend: %s error (HTTP %d)", e.Kind, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Message is the single user-facing string a failed mutation displays.
func (e *APIError) Message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Fields) > 0:
		return e.fieldSummary()
	case e.Kind == KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case e.Kind == KindAuth:
		return "You are not allowed to perform this action."
	case e.Kind == KindNotFound:
		return "The requested record no longer exists."
	default:
		return "Something went wrong. Please try again."
	}
}

// fieldSummary joins per-field messages in field order. The server's
// non_field_errors key is printed without a field prefix.
func (e *APIError) fieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		msgs := strings.Join(e.Fields[k], ", ")
		if k == "non_field_errors" {
			b.WriteString(msgs)
			continue
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(msgs)
	}
	return b.String()
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindNotFound
}

// IsValidation reports whether err carries rejected input (400/422).
func IsValidation(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindValidation
}

// AsAPIError unwraps err to the *APIError it carries, if any.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func kindForStatus(code int) Kind {
	switch {
	case code == 400 || code == 422:
		return KindValidation
	case code == 401 || code == 403:
		return KindAuth
	case code == 404:
		return KindNotFound
	case code == 409:
		return KindConflict
	default:
		return KindServer
	}
}

func errorFromResponse(resp *resty.Response) *APIError {
	e := &APIError{Kind: kindForStatus(resp.StatusCode()), StatusCode: resp.StatusCode()}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return e
	}
	defer resp.RawResponse.Body.Close()
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return e
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return e
	}
	e.Raw = body
	parseErrorBody(e, body)
	return e
}

func parseErrorBody(e *APIError, body []byte) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || len(probe) == 0 {
		// plain-text body; HTML error pages stay in Raw only
		if t := strings.TrimSpace(string(body)); t != "" && !strings.HasPrefix(t, "<") {
			e.Detail = t
		}
		return
	}

	if s, ok := stringValue(probe["detail"]); ok {
		e.Detail = s
	} else if s, ok := stringValue(probe["error"]); ok {
		e.Detail = s
	}

	for k, v := range probe {
		if k == "detail" || k == "error" {
			continue
		}
		var msgs []string
		if json.Unmarshal(v, &msgs) == nil {
			if len(msgs) > 0 {
				e.addField(k, msgs)
			}
			continue
		}
		var one string
		if json.Unmarshal(v, &one) == nil {
			e.addField(k, []string{one})
		}
	}
}

func (e *APIError) addField(k string, msgs []string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[k] = append(e.Fields[k], msgs...)
}

func stringValue(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
