package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a workflow failure for callers.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
	KindPartialFailure    Kind = "partial_failure"
	KindStoreUnavailable  Kind = "store_unavailable"
)

type sentinel struct {
	kind Kind
}

func (s *sentinel) Error() string {
	return string(s.kind)
}

// Sentinels for errors.Is. Any *WorkflowError of the same kind matches.
var (
	ErrUnauthorized      error = &sentinel{kind: KindUnauthorized}
	ErrNotFound          error = &sentinel{kind: KindNotFound}
	ErrInvalidTransition error = &sentinel{kind: KindInvalidTransition}
	ErrValidation        error = &sentinel{kind: KindValidation}
	ErrPartialFailure    error = &sentinel{kind: KindPartialFailure}
	ErrStoreUnavailable  error = &sentinel{kind: KindStoreUnavailable}
)

// WorkflowError is returned by every workflow operation that fails.
//
// For KindPartialFailure the primary write has committed: Committed names the
// steps that succeeded and Failed the dependent steps the caller may retry on
// their own. Retrying the whole operation would repeat the committed effect.
type WorkflowError struct {
	Kind      Kind
	Op        string
	Message   string
	Fields    map[string]string
	Committed []string
	Failed    []string
	Err       error
}

func (e *WorkflowError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+" "+e.Fields[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	s, ok := target.(*sentinel)
	return ok && s.kind == e.Kind
}

// KindOf returns the kind of the first WorkflowError in err's chain, or "".
func KindOf(err error) Kind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

func NewUnauthorized(op, message string) *WorkflowError {
	return &WorkflowError{Kind: KindUnauthorized, Op: op, Message: message}
}

func NewNotFound(op, entity string, id uint) *WorkflowError {
	return &WorkflowError{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

func NewInvalidTransition(op string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindInvalidTransition, Op: op, Message: "action not allowed in current status", Err: err}
}

func NewValidation(op string, fields map[string]string) *WorkflowError {
	return &WorkflowError{Kind: KindValidation, Op: op, Message: "invalid input", Fields: fields}
}

func NewPartialFailure(op string, committed, failed []string, err error) *WorkflowError {
	return &WorkflowError{
		Kind:      KindPartialFailure,
		Op:        op,
		Message:   "primary change committed, secondary effects incomplete",
		Committed: committed,
		Failed:    failed,
		Err:       err,
	}
}

func NewStoreUnavailable(op string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindStoreUnavailable, Op: op, Message: "store unavailable", Err: err}
}
