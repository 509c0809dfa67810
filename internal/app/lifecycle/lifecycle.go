// Package lifecycle holds the status transition rules for businesses,
// inspections and violations. Everything here is pure: no store access, no
// logging, and every input yields either a next status or a *Rejection.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/inspection-backend/internal/app/model"
)

// ErrInvalidTransition is wrapped by every *Rejection.
var ErrInvalidTransition = errors.New("invalid transition")

type Kind string

const (
	KindBusiness   Kind = "business"
	KindInspection Kind = "inspection"
	KindViolation  Kind = "violation"
	// KindViolationLink tracks whether a violation is tied to an inspection.
	KindViolationLink Kind = "violation_link"
)

// Link states for KindViolationLink.
const (
	LinkUnlinked = "unlinked"
	LinkLinked   = "linked"
)

type Action string

const (
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionRequestRevision Action = "request_revision"
	ActionResubmit        Action = "resubmit"

	ActionAssign      Action = "assign"
	ActionStart       Action = "start"
	ActionComplete    Action = "complete"
	ActionCancel      Action = "cancel"
	ActionMarkOverdue Action = "mark_overdue"
	ActionReschedule  Action = "reschedule"

	ActionStartWork Action = "start_work"
	ActionResolve   Action = "resolve"
	ActionClose     Action = "close"
	ActionReopen    Action = "reopen"
	ActionLink      Action = "link"
)

// Context carries the action arguments some transitions are guarded on.
type Context struct {
	Reason       string
	Feedback     map[model.DocumentType]string
	InspectorID  uint
	Score        *int
	Date         *time.Time
	InspectionID uint
}

// Rejection explains why a transition was refused.
type Rejection struct {
	Kind   Kind
	From   string
	Action Action
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: cannot %s from %q: %s", r.Kind, r.Action, r.From, r.Reason)
}

func (r *Rejection) Unwrap() error {
	return ErrInvalidTransition
}

type guard func(Context) string

type edge struct {
	from  []string // nil matches any known status
	to    string
	guard guard
}

var (
	businessStatuses = []string{
		string(model.BusinessPending),
		string(model.BusinessVerified),
		string(model.BusinessRejected),
		string(model.BusinessNeedsRevision),
	}
	inspectionStatuses = []string{
		string(model.InspectionRequested),
		string(model.InspectionScheduled),
		string(model.InspectionInProgress),
		string(model.InspectionCompleted),
		string(model.InspectionOverdue),
		string(model.InspectionCancelled),
	}
	violationStatuses = []string{
		string(model.ViolationOpen),
		string(model.ViolationInProgress),
		string(model.ViolationResolved),
		string(model.ViolationClosed),
	}
	linkStates = []string{LinkUnlinked, LinkLinked}
)

var table = map[Kind]map[Action]edge{
	KindBusiness: {
		ActionApprove: {
			from: []string{string(model.BusinessPending)},
			to:   string(model.BusinessVerified),
		},
		ActionReject: {
			from: []string{string(model.BusinessPending)},
			to:   string(model.BusinessRejected),
		},
		ActionRequestRevision: {
			from:  []string{string(model.BusinessPending)},
			to:    string(model.BusinessNeedsRevision),
			guard: requireFeedback,
		},
		ActionResubmit: {
			from: []string{string(model.BusinessRejected), string(model.BusinessNeedsRevision)},
			to:   string(model.BusinessPending),
		},
	},
	KindInspection: {
		ActionAssign: {
			from:  []string{string(model.InspectionRequested), string(model.InspectionScheduled)},
			to:    string(model.InspectionScheduled),
			guard: requireInspector,
		},
		ActionStart: {
			from:  []string{string(model.InspectionScheduled), string(model.InspectionOverdue)},
			to:    string(model.InspectionInProgress),
			guard: requireAssigned,
		},
		ActionComplete: {
			from:  []string{string(model.InspectionInProgress)},
			to:    string(model.InspectionCompleted),
			guard: requireScore,
		},
		ActionCancel: {
			to: string(model.InspectionCancelled),
		},
		ActionMarkOverdue: {
			from:  []string{string(model.InspectionScheduled)},
			to:    string(model.InspectionOverdue),
			guard: requireAssigned,
		},
		ActionReschedule: {
			from:  []string{string(model.InspectionOverdue)},
			to:    string(model.InspectionScheduled),
			guard: requireDate,
		},
	},
	KindViolation: {
		ActionStartWork: {
			from: []string{string(model.ViolationOpen)},
			to:   string(model.ViolationInProgress),
		},
		ActionResolve: {
			from:  []string{string(model.ViolationOpen), string(model.ViolationInProgress)},
			to:    string(model.ViolationResolved),
			guard: requireDate,
		},
		ActionClose: {
			from: []string{string(model.ViolationResolved)},
			to:   string(model.ViolationClosed),
		},
		ActionReopen: {
			to: string(model.ViolationOpen),
		},
	},
	KindViolationLink: {
		ActionLink: {
			from:  []string{LinkUnlinked},
			to:    LinkLinked,
			guard: requireInspection,
		},
	},
}

var knownStatuses = map[Kind][]string{
	KindBusiness:      businessStatuses,
	KindInspection:    inspectionStatuses,
	KindViolation:     violationStatuses,
	KindViolationLink: linkStates,
}

// Transition returns the status reached by applying action to an entity of
// the given kind currently in status current.
func Transition(kind Kind, current string, action Action, ctx Context) (string, error) {
	reject := func(reason string) (string, error) {
		return "", &Rejection{Kind: kind, From: current, Action: action, Reason: reason}
	}

	statuses, ok := knownStatuses[kind]
	if !ok {
		return reject("unknown entity kind")
	}
	if !contains(statuses, current) {
		return reject("unknown status")
	}

	e, ok := table[kind][action]
	if !ok {
		return reject("action not supported")
	}
	if e.from != nil && !contains(e.from, current) {
		return reject("not allowed from this status")
	}
	if e.guard != nil {
		if reason := e.guard(ctx); reason != "" {
			return reject(reason)
		}
	}
	return e.to, nil
}

// Allowed lists the actions that would be accepted from current, ignoring guards.
func Allowed(kind Kind, current string) []Action {
	if !contains(knownStatuses[kind], current) {
		return nil
	}
	var actions []Action
	for action, e := range table[kind] {
		if e.from == nil || contains(e.from, current) {
			actions = append(actions, action)
		}
	}
	return actions
}

func NextBusinessStatus(current model.BusinessStatus, action Action, ctx Context) (model.BusinessStatus, error) {
	next, err := Transition(KindBusiness, string(current), action, ctx)
	return model.BusinessStatus(next), err
}

func NextInspectionStatus(current model.InspectionStatus, action Action, ctx Context) (model.InspectionStatus, error) {
	next, err := Transition(KindInspection, string(current), action, ctx)
	return model.InspectionStatus(next), err
}

func NextViolationStatus(current model.ViolationStatus, action Action, ctx Context) (model.ViolationStatus, error) {
	next, err := Transition(KindViolation, string(current), action, ctx)
	return model.ViolationStatus(next), err
}

// LinkState maps a violation's inspection reference onto KindViolationLink states.
func LinkState(inspectionID uint) string {
	if inspectionID == model.UnlinkedInspection {
		return LinkUnlinked
	}
	return LinkLinked
}

func requireFeedback(ctx Context) string {
	if len(ctx.Feedback) == 0 {
		return "at least one document feedback entry is required"
	}
	return ""
}

func requireInspector(ctx Context) string {
	if ctx.InspectorID == 0 {
		return "inspector id is required"
	}
	return ""
}

// requireAssigned InspectorID 는 현재 배정된 점검관. 미배정 점검은 requested/scheduled 를 벗어날 수 없다
func requireAssigned(ctx Context) string {
	if ctx.InspectorID == 0 {
		return "inspection has no assigned inspector"
	}
	return ""
}

func requireScore(ctx Context) string {
	if ctx.Score == nil {
		return "compliance score is required"
	}
	if *ctx.Score < 0 || *ctx.Score > 100 {
		return "compliance score must be between 0 and 100"
	}
	return ""
}

func requireDate(ctx Context) string {
	if ctx.Date == nil || ctx.Date.IsZero() {
		return "date is required"
	}
	return ""
}

func requireInspection(ctx Context) string {
	if ctx.InspectionID == model.UnlinkedInspection {
		return "inspection id is required"
	}
	return ""
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
