// Package cascade coordinates the specialty, provider, date and time fields
// of a booking form. Each Controller owns one form and is the only writer of
// its state.
package cascade

// Field names one of the four cascading inputs.
type Field string

const (
	FieldSpecialty Field = "specialty"
	FieldProvider  Field = "provider"
	FieldDate      Field = "date"
	FieldTime      Field = "time"
)

// Fields lists the inputs in cascade order.
var Fields = []Field{FieldSpecialty, FieldProvider, FieldDate, FieldTime}

// Status is the lifecycle state of a field.
type Status string

const (
	StatusDisabled  Status = "disabled"
	StatusEmpty     Status = "empty"
	StatusLoading   Status = "loading"
	StatusPopulated Status = "populated"
	StatusError     Status = "error"
)

// Option is one selectable entry of a field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldState is what the page renders for one input.
type FieldState struct {
	Status      Status   `json:"status"`
	Options     []Option `json:"options"`
	Value       string   `json:"value"`
	Placeholder string   `json:"placeholder,omitempty"`
	// Min is the earliest selectable date; only the date field sets it.
	Min string `json:"min,omitempty"`
}

// Enabled reports whether the page should let the user interact with the field.
func (f FieldState) Enabled() bool {
	return f.Status != StatusDisabled
}

// HasOption reports whether value is among the field's options.
func (f FieldState) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func (f FieldState) clone() FieldState {
	if f.Options != nil {
		opts := make([]Option, len(f.Options))
		copy(opts, f.Options)
		f.Options = opts
	}
	return f
}

// NoticeLevel grades a notice for display.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message, shown by the page as an alert.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Field   Field       `json:"field,omitempty"`
	Message string      `json:"message"`
}

// FormState is a snapshot of all four fields.
type FormState struct {
	Specialty FieldState `json:"specialty"`
	Provider  FieldState `json:"provider"`
	Date      FieldState `json:"date"`
	Time      FieldState `json:"time"`
	// Notice is the most recent notice, if any.
	Notice *Notice `json:"notice,omitempty"`
}

// Get returns the state of field f.
func (s FormState) Get(f Field) FieldState {
	switch f {
	case FieldSpecialty:
		return s.Specialty
	case FieldProvider:
		return s.Provider
	case FieldDate:
		return s.Date
	default:
		return s.Time
	}
}

// Complete reports whether every field holds a value.
func (s FormState) Complete() bool {
	return len(s.Missing()) == 0
}

// Missing lists the fields without a value, in cascade order.
func (s FormState) Missing() []Field {
	var missing []Field
	for _, f := range Fields {
		if s.Get(f).Value == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func (s *FormState) ptr(f Field) *FieldState {
	switch f {
	case FieldSpecialty:
		return &s.Specialty
	case FieldProvider:
		return &s.Provider
	case FieldDate:
		return &s.Date
	default:
		return &s.Time
	}
}

func (s FormState) clone() FormState {
	out := FormState{
		Specialty: s.Specialty.clone(),
		Provider:  s.Provider.clone(),
		Date:      s.Date.clone(),
		Time:      s.Time.clone(),
	}
	if s.Notice != nil {
		n := *s.Notice
		out.Notice = &n
	}
	return out
}

// EventKind distinguishes field updates from notices.
type EventKind string

const (
	EventField  EventKind = "field"
	EventNotice EventKind = "notice"
)

// Event is published to subscribers whenever a field changes or a notice is raised.
type Event struct {
	Kind   EventKind   `json:"kind"`
	Field  Field       `json:"field,omitempty"`
	State  *FieldState `json:"state,omitempty"`
	Notice *Notice     `json:"notice,omitempty"`
}
