package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	// KindTransport means the request could not be sent or the response could
	// not be parsed.
	KindTransport ErrorKind = iota
	// KindBackend means the backend answered with a non-2xx status.
	KindBackend
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Operation names, also used as metric labels.
const (
	OpUpload    = "upload"
	OpDashboard = "dashboard"
	OpChat      = "chat"
	OpExport    = "export"
	OpPing      = "ping"
)

var genericMessages = map[string]string{
	OpUpload:    "File upload failed.",
	OpDashboard: "Failed to load dashboard data.",
	OpChat:      "Failed to get a response from the assistant.",
	OpExport:    "Failed to generate PDF report.",
	OpPing:      "Backend is not reachable.",
}

// GenericMessage returns the fallback message for op.
func GenericMessage(op string) string {
	if msg, ok := genericMessages[op]; ok {
		return msg
	}
	return "Request failed."
}

// Error is the failure side of every client call. Detail is always set and
// safe to show to a user.
type Error struct {
	Op     string
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s error", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Detail)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail extracts the user-facing message from err. Non-transfer errors get
// their Error() text.
func Detail(err error) string {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func transportError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTransport, Detail: GenericMessage(op), Err: err}
}

// backendError builds the error for a non-2xx response. When parseDetail is
// set, a {"detail": string} body supplies the message; anything else falls
// back to the generic one.
func backendError(op string, status int, body []byte, parseDetail bool) *Error {
	detail := GenericMessage(op)
	if parseDetail {
		if d := parseDetailBody(body); d != "" {
			detail = d
		}
	}
	return &Error{Op: op, Kind: KindBackend, Status: status, Detail: detail}
}

func parseDetailBody(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	// Validation errors carry a list here; only plain strings are shown.
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
