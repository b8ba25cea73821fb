// Package validate evaluates the synchronous field rules of a form step
// against a full field snapshot. It is pure: no I/O, no session state, no
// asynchronous checks (those live in internal/precheck).
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"intake-gateway/internal/forms"
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	curpRe   = regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[A-Z0-9][0-9]$`)
)

// Step validates every field of one step against the snapshot and returns a
// field → message map. An empty map means the step's synchronous rules all
// hold. Conditional-required rules read the sibling's current value from the
// snapshot, so a change to the sibling is reflected immediately.
func Step(step forms.Step, values map[string]forms.Value) map[string]string {
	errs := make(map[string]string)
	for _, spec := range step.Fields {
		if msg := Field(spec, values); msg != "" {
			errs[spec.Name] = msg
		}
	}
	return errs
}

// Definition validates all steps of a form, unioning the per-step maps.
func Definition(def *forms.Definition, values map[string]forms.Value) map[string]string {
	errs := make(map[string]string)
	for _, step := range def.Steps {
		for name, msg := range Step(step, values) {
			errs[name] = msg
		}
	}
	return errs
}

// Field evaluates one field's rules against the snapshot. Returns the first
// violated rule's message, or "" when the field is valid.
func Field(spec forms.FieldSpec, values map[string]forms.Value) string {
	v := values[spec.Name]
	empty := v.IsEmpty(spec.Kind)

	required := spec.Required
	if spec.RequiredIf != nil {
		required = spec.RequiredIf.Matches(values[spec.RequiredIf.Sibling].Text)
	}

	if empty {
		if required {
			return "campo requerido"
		}
		if spec.Kind == forms.KindMultiChoice && spec.MinItems > 0 {
			return fmt.Sprintf("seleccione al menos %d opción(es)", spec.MinItems)
		}
		return ""
	}

	switch spec.Kind {
	case forms.KindMultiChoice:
		if len(v.List) < spec.MinItems {
			return fmt.Sprintf("seleccione al menos %d opción(es)", spec.MinItems)
		}
		for _, item := range v.List {
			if !allowedOption(spec, item) {
				return fmt.Sprintf("opción no válida: %s", item)
			}
		}
		return ""
	case forms.KindChoice:
		if !allowedOption(spec, v.Text) {
			return fmt.Sprintf("opción no válida: %s", v.Text)
		}
		return ""
	case forms.KindDigits:
		if !digitsRe.MatchString(strings.TrimSpace(v.Text)) {
			return "solo se permiten dígitos"
		}
	}

	return formatError(spec.Format, strings.TrimSpace(v.Text))
}

func allowedOption(spec forms.FieldSpec, value string) bool {
	// Cascading selects have no static option list; reference data owns them.
	if len(spec.Options) == 0 {
		return true
	}
	for _, o := range spec.Options {
		if o == value {
			return true
		}
	}
	return false
}

func formatError(f forms.Format, text string) string {
	switch f {
	case forms.FormatEmail:
		if !emailRe.MatchString(text) {
			return "correo electrónico no válido"
		}
	case forms.FormatPhone:
		if len(text) != 10 || !digitsRe.MatchString(text) {
			return "el teléfono debe tener 10 dígitos"
		}
	case forms.FormatPostal:
		if len(text) != 5 || !digitsRe.MatchString(text) {
			return "el código postal debe tener 5 dígitos"
		}
	case forms.FormatCURP:
		if len(text) != 18 {
			return "la CURP debe tener 18 caracteres"
		}
		if !curpRe.MatchString(strings.ToUpper(text)) {
			return "CURP con formato no válido"
		}
	}
	return ""
}
