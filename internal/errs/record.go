// Package errs defines the structured error record that is the sole
// error currency between the engine and its callers (NETCONF sessions,
// RESTCONF requests, the CLI).
package errs

import (
	"fmt"
	"strings"
)

// Type classifies the origin of a Record.
type Type string

const (
	TypeTransport   Type = "transport"
	TypeRPC         Type = "rpc"
	TypeProtocol    Type = "protocol"
	TypeApplication Type = "application"
)

// Tag is a symbol from the closed NETCONF error-tag set.
type Tag string

const (
	TagInUse               Tag = "in-use"
	TagInvalidValue        Tag = "invalid-value"
	TagTooBig              Tag = "too-big"
	TagMissingAttribute    Tag = "missing-attribute"
	TagBadAttribute        Tag = "bad-attribute"
	TagUnknownAttribute    Tag = "unknown-attribute"
	TagMissingElement      Tag = "missing-element"
	TagBadElement          Tag = "bad-element"
	TagUnknownElement      Tag = "unknown-element"
	TagUnknownNamespace    Tag = "unknown-namespace"
	TagAccessDenied        Tag = "access-denied"
	TagLockDenied          Tag = "lock-denied"
	TagResourceDenied      Tag = "resource-denied"
	TagRollbackFailed      Tag = "rollback-failed"
	TagDataExists          Tag = "data-exists"
	TagDataMissing         Tag = "data-missing"
	TagOperationNotSupp    Tag = "operation-not-supported"
	TagOperationFailed     Tag = "operation-failed"
	TagPartialOperation    Tag = "partial-operation"
	TagMalformedMessage    Tag = "malformed-message"
)

// Severity is either error or warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Record is the structured value carried between the validator, the
// transaction engine, and the dispatcher. No other error channel is
// exposed to a caller.
type Record struct {
	Type     Type
	Tag      Tag
	Severity Severity
	Path     string
	Message  string
	Info     string

	// Unauthenticated distinguishes an access-denied Record raised because
	// no identity was established at all from one raised because an
	// established identity lacks permission (spec §6: access-denied maps
	// to 401 if unauthenticated, 403 if unauthorized).
	Unauthenticated bool
}

func (r *Record) Error() string {
	var b strings.Builder
	b.WriteString(string(r.Tag))
	if r.Path != "" {
		fmt.Fprintf(&b, " (%s)", r.Path)
	}
	if r.Message != "" {
		fmt.Fprintf(&b, ": %s", r.Message)
	}
	return b.String()
}

// New builds an error-severity Record of the given type/tag.
func New(typ Type, tag Tag, path, message string) *Record {
	return &Record{Type: typ, Tag: tag, Severity: SeverityError, Path: path, Message: message}
}

// Warning builds a warning-severity Record.
func Warning(typ Type, tag Tag, path, message string) *Record {
	return &Record{Type: typ, Tag: tag, Severity: SeverityWarning, Path: path, Message: message}
}

// Internal wraps an unexpected internal condition (corrupt tree, nil
// invariant) as operation-failed without leaking implementation detail.
func Internal(message string) *Record {
	return New(TypeApplication, TagOperationFailed, "", "internal error: "+message)
}

// Unauthenticated builds an access-denied Record for a request that
// carried no (or no valid) credentials at all, as opposed to one raised
// by an authenticated caller lacking permission (spec §6).
func Unauthenticated(path, message string) *Record {
	r := New(TypeApplication, TagAccessDenied, path, message)
	r.Unauthenticated = true
	return r
}

// List is an ordered collection of Records, the unit validators and
// callbacks return on failure.
type List []*Record

func (l List) Error() string {
	if len(l) == 0 {
		return ""
	}
	msgs := make([]string, len(l))
	for i, r := range l {
		msgs[i] = r.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any Record in the list is error-severity.
func (l List) HasErrors() bool {
	for _, r := range l {
		if r.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity records.
func (l List) Errors() List {
	out := make(List, 0, len(l))
	for _, r := range l {
		if r.Severity == SeverityError {
			out = append(out, r)
		}
	}
	return out
}

// Warnings returns only the warning-severity records.
func (l List) Warnings() List {
	out := make(List, 0, len(l))
	for _, r := range l {
		if r.Severity == SeverityWarning {
			out = append(out, r)
		}
	}
	return out
}
