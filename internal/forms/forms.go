// Package forms defines the intake form catalog: which wizard forms exist,
// their ordered steps, and the field rules each step enforces.
//
// Definitions are static data. All rule evaluation lives in the validate
// subpackage; all session state lives in internal/session.
package forms

// Kind is the value shape a field accepts.
type Kind string

const (
	KindText        Kind = "text"
	KindChoice      Kind = "choice"
	KindMultiChoice Kind = "multi_choice"
	KindDigits      Kind = "digits"
	KindBool        Kind = "bool"
)

// Format is a syntactic constraint on a text field.
type Format string

const (
	FormatNone   Format = ""
	FormatEmail  Format = "email"
	FormatPhone  Format = "phone"  // exactly 10 digits
	FormatPostal Format = "postal" // exactly 5 digits
	FormatCURP   Format = "curp"   // exactly 18 characters, CURP shape
)

// Precondition names the external check a field is bound to, if any.
type Precondition string

const (
	PreconditionNone     Precondition = ""
	PreconditionIdentity Precondition = "identity" // SIF precheck + RENAPO verify
	PreconditionPhone    Precondition = "phone"    // SIF uniqueness precheck
)

// Condition makes a field required only while a sibling holds one of the
// trigger values ("otro, especifique" fields).
type Condition struct {
	Sibling  string
	Triggers []string
}

// Matches reports whether the sibling's current text activates the condition.
func (c *Condition) Matches(siblingValue string) bool {
	for _, t := range c.Triggers {
		if siblingValue == t {
			return true
		}
	}
	return false
}

// FieldSpec declares one named, typed slot and its synchronous rules.
type FieldSpec struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	// RequiredIf overrides Required: the field is mandatory only while the
	// condition matches. Re-evaluated on every sibling change.
	RequiredIf *Condition
	// MinItems applies to multi_choice fields; the step gate stays closed
	// until the selection reaches this cardinality.
	MinItems int
	Format   Format
	// Options restricts choice/multi_choice fields to a fixed list. Empty
	// means the options come from reference data (cascading selects).
	Options []string
	// Precondition binds the field to an external check that must pass (or
	// be explicitly bypassed) before the owning step completes.
	Precondition Precondition
	// DependsOn names the parent field of a cascading select. Changing the
	// parent clears this field's value.
	DependsOn string
	// AutoFilled marks fields whose values arrive from identity verification
	// or document scanning. They become editable only after a bypass.
	AutoFilled bool
}

// Step is one wizard screen: a named group of fields, optionally a photo
// capture slot.
type Step struct {
	Name   string
	Title  string
	Fields []FieldSpec
	// MaxPhotos caps attachments for photo-taking steps. Zero disables the
	// photo slot entirely.
	MaxPhotos int
}

// Definition is a complete multi-step intake form.
type Definition struct {
	ID    string
	Name  string
	Steps []Step
}

// Field finds a spec by name across all steps.
func (d *Definition) Field(name string) (FieldSpec, bool) {
	for _, s := range d.Steps {
		for _, f := range s.Fields {
			if f.Name == name {
				return f, true
			}
		}
	}
	return FieldSpec{}, false
}

// StepOf returns the index of the step owning the named field, or -1.
func (d *Definition) StepOf(name string) int {
	for i, s := range d.Steps {
		for _, f := range s.Fields {
			if f.Name == name {
				return i
			}
		}
	}
	return -1
}

// Dependents lists fields that cascade off the named parent field.
func (d *Definition) Dependents(parent string) []string {
	var out []string
	for _, s := range d.Steps {
		for _, f := range s.Fields {
			if f.DependsOn == parent {
				out = append(out, f.Name)
			}
		}
	}
	return out
}

// MaxPhotos returns the photo cap across all steps (the wizard keeps one
// shared attachment list).
func (d *Definition) MaxPhotos() int {
	max := 0
	for _, s := range d.Steps {
		if s.MaxPhotos > max {
			max = s.MaxPhotos
		}
	}
	return max
}
