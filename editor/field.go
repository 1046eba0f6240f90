// Package editor implements the per-field edit session used by every
// inline-editable value (project title, task fields, member fields).
// A Field owns only its transient draft; committing hands the draft to
// the owner, which issues the actual mutation.
package editor

// Mode is the state of a field's edit session.
type Mode int

const (
	Viewing Mode = iota
	Editing
)

// Kind selects the keyboard policy: single-line fields commit on Enter
// and cancel on Escape, multi-line fields only react to explicit
// Commit/Cancel calls (save and cancel buttons in the UI).
type Kind int

const (
	SingleLine Kind = iota
	MultiLine
)

// Key is a keyboard event relevant to an edit session.
type Key int

const (
	KeyEnter Key = iota
	KeyEscape
)

// Field is the edit/commit/cancel state machine for one editable
// value. The zero Mode is Viewing.
type Field struct {
	kind   Kind
	mode   Mode
	value  string
	draft  string
	onSave func(string)
}

// NewField creates a field showing the given authoritative value.
// onSave is invoked with the draft on commit; it may be nil for
// display-only composition.
func NewField(kind Kind, value string, onSave func(string)) *Field {
	return &Field{kind: kind, value: value, onSave: onSave}
}

// Mode returns the current session state.
func (f *Field) Mode() Mode { return f.mode }

// Value returns the displayed value: the last authoritative value
// while viewing.
func (f *Field) Value() string { return f.value }

// Draft returns the uncommitted edit buffer. Meaningful only while
// Editing.
func (f *Field) Draft() string { return f.draft }

// BeginEdit enters Editing, capturing the current value as the draft.
// No-op while already editing.
func (f *Field) BeginEdit() {
	if f.mode == Editing {
		return
	}
	f.mode = Editing
	f.draft = f.value
}

// Change updates the draft. Ignored while viewing.
func (f *Field) Change(v string) {
	if f.mode != Editing {
		return
	}
	f.draft = v
}

// Commit emits the draft to the owner and returns to Viewing. The
// draft is displayed until SetValue delivers the server-confirmed
// value. This is the only transition that reaches outside the field.
func (f *Field) Commit() {
	if f.mode != Editing {
		return
	}
	f.mode = Viewing
	f.value = f.draft
	if f.onSave != nil {
		f.onSave(f.draft)
	}
}

// Cancel discards the draft and reverts to the last authoritative
// value.
func (f *Field) Cancel() {
	if f.mode != Editing {
		return
	}
	f.mode = Viewing
	f.draft = ""
}

// SetValue delivers a new authoritative value, typically after a
// refetch confirms a mutation. An in-progress draft is untouched.
func (f *Field) SetValue(v string) {
	f.value = v
}

// HandleKey applies the keyboard policy for the field's kind.
func (f *Field) HandleKey(k Key) {
	if f.mode != Editing || f.kind != SingleLine {
		return
	}
	switch k {
	case KeyEnter:
		f.Commit()
	case KeyEscape:
		f.Cancel()
	}
}
