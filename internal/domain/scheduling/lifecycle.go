package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthportal/portal/pkg/clock"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoShowBeforeStart = errors.New("appointment has not started yet")
)

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

type rule struct {
	from []Status
	to   Status
}

var transitions = map[Action]rule{
	ActionConfirm:  {from: []Status{StatusScheduled}, to: StatusConfirmed},
	ActionCancel:   {from: []Status{StatusScheduled, StatusConfirmed}, to: StatusCancelled},
	ActionComplete: {from: []Status{StatusConfirmed}, to: StatusCompleted},
	ActionNoShow:   {from: []Status{StatusScheduled, StatusConfirmed}, to: StatusNoShow},
}

// Transition is a guarded status change. The store applies it as a single
// compare-and-set: the row is updated only if its current status is one of
// From and, when StartedBy is set, its start is not after StartedBy.
type Transition struct {
	ID        uuid.UUID
	Action    Action
	From      []Status
	To        Status
	At        time.Time
	Note      string
	StartedBy *time.Time
}

// FromStrings returns From as plain strings for SQL array binding.
func (t Transition) FromStrings() []string {
	out := make([]string, len(t.From))
	for i, s := range t.From {
		out[i] = string(s)
	}
	return out
}

// Permits reports whether a may take this transition.
func (t Transition) Permits(a *Appointment) bool {
	if !statusIn(a.Status, t.From) {
		return false
	}
	if t.StartedBy != nil && a.AppointmentDate.After(*t.StartedBy) {
		return false
	}
	return true
}

// Apply mutates a as the store would after a successful compare-and-set.
func (t Transition) Apply(a *Appointment) {
	a.Status = t.To
	a.UpdatedAt = t.At
	switch t.Action {
	case ActionConfirm:
		at := t.At
		a.ConfirmedAt = &at
	case ActionCancel:
		notes := AppendNote(a.Notes, t.Note)
		a.Notes = &notes
	}
}

// Lifecycle builds transitions for the four status actions.
type Lifecycle struct {
	clock                   clock.Clock
	noShowRequiresPastStart bool
}

// NewLifecycle returns a lifecycle. With noShowRequiresPastStart an
// appointment can only be marked as a no-show once its start time is reached.
func NewLifecycle(clk clock.Clock, noShowRequiresPastStart bool) *Lifecycle {
	if clk == nil {
		clk = clock.System{}
	}
	return &Lifecycle{clock: clk, noShowRequiresPastStart: noShowRequiresPastStart}
}

func (l *Lifecycle) Plan(id uuid.UUID, action Action, reason string) (Transition, error) {
	r, ok := transitions[action]
	if !ok {
		return Transition{}, fmt.Errorf("unknown action %q", action)
	}
	now := l.clock.Now()
	t := Transition{ID: id, Action: action, From: r.from, To: r.to, At: now}
	switch action {
	case ActionCancel:
		t.Note = CancelNote(reason)
	case ActionNoShow:
		if l.noShowRequiresPastStart {
			t.StartedBy = &now
		}
	}
	return t, nil
}

// Explain returns why t cannot be applied to the current state of a.
func (l *Lifecycle) Explain(a *Appointment, t Transition) error {
	if !statusIn(a.Status, t.From) {
		return fmt.Errorf("%w: cannot %s an appointment that is %s", ErrInvalidTransition, t.Action, a.Status)
	}
	if t.StartedBy != nil && a.AppointmentDate.After(*t.StartedBy) {
		return ErrNoShowBeforeStart
	}
	return fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
}

func CancelNote(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "Cancelled"
	}
	return "Cancelled: " + reason
}

// AppendNote joins note onto existing notes with " - ".
func AppendNote(notes *string, note string) string {
	if notes == nil || *notes == "" {
		return note
	}
	return *notes + " - " + note
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
