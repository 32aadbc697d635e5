package leads

import (
	"time"
)

// FieldMap holds extracted field values for a single model turn.
type FieldMap map[string]string

// Field is a known lead field. MultiValue fields accumulate comma-separated
// values across turns instead of overwriting.
type Field struct {
	Name       string
	MultiValue bool
}

// Registry is the fixed set of fields the counselor collects. The merge
// policy is decided here, not inferred at runtime.
var Registry = []Field{
	{Name: "Name"},
	{Name: "Mobile"},
	{Name: "Email"},
	{Name: "Country", MultiValue: true},
	{Name: "Target_Degree", MultiValue: true},
	{Name: "Intended_Major", MultiValue: true},
	{Name: "College", MultiValue: true},
	{Name: "Budget"},
	{Name: "Sentiment"},
	{Name: "Propensity"},
}

// Headers is the column layout of the lead log, shared by the sheet and the
// CSV fallback.
var Headers = []string{
	"Session_ID", "Timestamp", "Name", "Mobile", "Email", "Country",
	"Target_Degree", "Intended_Major", "College", "Budget", "Sentiment",
	"Propensity", "Time_Spent", "User_Inputs_Only", "Full_Conversation_History",
}

var multiValue = func() map[string]bool {
	m := make(map[string]bool, len(Registry))
	for _, f := range Registry {
		if f.MultiValue {
			m[f.Name] = true
		}
	}
	return m
}()

// Names returns the registered field names in declaration order.
func Names() []string {
	names := make([]string, len(Registry))
	for i, f := range Registry {
		names[i] = f.Name
	}
	return names
}

// Known reports whether name is a registered field.
func Known(name string) bool {
	for _, f := range Registry {
		if f.Name == name {
			return true
		}
	}
	return false
}

// IsMultiValue reports whether name uses the comma-accumulation merge policy.
// Unknown names are not multi-value.
func IsMultiValue(name string) bool {
	return multiValue[name]
}

// Lead is an immutable snapshot of a session at the point of persistence.
type Lead struct {
	SessionID    string
	Timestamp    time.Time
	Fields       FieldMap
	TimeSpent    string
	UserInputs   string
	Conversation string
}

// Row lays the lead out as one record in Headers order.
func (l Lead) Row() []string {
	row := make([]string, 0, len(Headers))
	row = append(row, l.SessionID, l.Timestamp.Format("2006-01-02 15:04:05"))
	for _, f := range Registry {
		row = append(row, l.Fields[f.Name])
	}
	row = append(row, l.TimeSpent, l.UserInputs, l.Conversation)
	return row
}
