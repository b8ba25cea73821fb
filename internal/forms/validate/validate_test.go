package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-gateway/internal/forms"
)

func businessStep(t *testing.T) forms.Step {
	t.Helper()
	def := forms.AperturaEmpresas()
	for _, s := range def.Steps {
		if s.Name == "negocio" {
			return s
		}
	}
	t.Fatal("negocio step missing from apertura-empresas")
	return forms.Step{}
}

func TestConditionalRequired(t *testing.T) {
	step := businessStep(t)

	base := map[string]forms.Value{
		"nombreNegocio":    forms.TextValue("Abarrotes La Venta"),
		"giro":             forms.TextValue("comercio"),
		"serviciosInteres": forms.ListValue("asesoria"),
	}

	t.Run("otroGiro optional while giro is not otro", func(t *testing.T) {
		errs := Step(step, base)
		assert.Empty(t, errs)
	})

	t.Run("giro otro with empty otroGiro is invalid", func(t *testing.T) {
		values := cloneValues(base)
		values["giro"] = forms.TextValue("otro")
		errs := Step(step, values)
		assert.Equal(t, "campo requerido", errs["otroGiro"])
	})

	t.Run("filling otroGiro clears the error", func(t *testing.T) {
		values := cloneValues(base)
		values["giro"] = forms.TextValue("otro")
		values["otroGiro"] = forms.TextValue("Acuicultura")
		errs := Step(step, values)
		assert.Empty(t, errs)
	})

	t.Run("changing giro back releases otroGiro without an edit to it", func(t *testing.T) {
		values := cloneValues(base)
		values["giro"] = forms.TextValue("otro")
		require.NotEmpty(t, Step(step, values))
		values["giro"] = forms.TextValue("servicios")
		assert.Empty(t, Step(step, values))
	})
}

func TestMultiSelectMinimumCardinality(t *testing.T) {
	step := businessStep(t)
	values := map[string]forms.Value{
		"nombreNegocio":    forms.TextValue("Taller Omega"),
		"giro":             forms.TextValue("industria"),
		"serviciosInteres": forms.ListValue("financiamiento"),
	}
	assert.Empty(t, Step(step, values))

	// Deselecting the sole item flips valid -> invalid.
	values["serviciosInteres"] = forms.ListValue()
	errs := Step(step, values)
	assert.Contains(t, errs, "serviciosInteres")
}

func TestFormatRules(t *testing.T) {
	tests := []struct {
		name    string
		spec    forms.FieldSpec
		value   forms.Value
		wantErr bool
	}{
		{"valid phone", forms.FieldSpec{Name: "telefono", Kind: forms.KindDigits, Format: forms.FormatPhone}, forms.TextValue("9931234567"), false},
		{"short phone", forms.FieldSpec{Name: "telefono", Kind: forms.KindDigits, Format: forms.FormatPhone}, forms.TextValue("993123"), true},
		{"alpha phone", forms.FieldSpec{Name: "telefono", Kind: forms.KindDigits, Format: forms.FormatPhone}, forms.TextValue("99312345ab"), true},
		{"valid postal", forms.FieldSpec{Name: "cp", Kind: forms.KindDigits, Format: forms.FormatPostal}, forms.TextValue("86000"), false},
		{"long postal", forms.FieldSpec{Name: "cp", Kind: forms.KindDigits, Format: forms.FormatPostal}, forms.TextValue("860001"), true},
		{"valid email", forms.FieldSpec{Name: "correo", Kind: forms.KindText, Format: forms.FormatEmail}, forms.TextValue("ana@example.com"), false},
		{"invalid email", forms.FieldSpec{Name: "correo", Kind: forms.KindText, Format: forms.FormatEmail}, forms.TextValue("ana@@example"), true},
		{"valid curp", forms.FieldSpec{Name: "curp", Kind: forms.KindText, Format: forms.FormatCURP}, forms.TextValue("PEGJ850315HTCRRN07"), false},
		{"short curp", forms.FieldSpec{Name: "curp", Kind: forms.KindText, Format: forms.FormatCURP}, forms.TextValue("PEGJ850315"), true},
		{"malformed curp", forms.FieldSpec{Name: "curp", Kind: forms.KindText, Format: forms.FormatCURP}, forms.TextValue("123456789012345678"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Field(tt.spec, map[string]forms.Value{tt.spec.Name: tt.value})
			if tt.wantErr {
				assert.NotEmpty(t, msg)
			} else {
				assert.Empty(t, msg)
			}
		})
	}
}

func TestRequiredRules(t *testing.T) {
	t.Run("whitespace-only text counts as empty", func(t *testing.T) {
		spec := forms.FieldSpec{Name: "nombre", Kind: forms.KindText, Required: true}
		msg := Field(spec, map[string]forms.Value{"nombre": forms.TextValue("   ")})
		assert.Equal(t, "campo requerido", msg)
	})

	t.Run("required bool must be checked", func(t *testing.T) {
		spec := forms.FieldSpec{Name: "aceptaAviso", Kind: forms.KindBool, Required: true}
		assert.NotEmpty(t, Field(spec, map[string]forms.Value{}))
		assert.Empty(t, Field(spec, map[string]forms.Value{"aceptaAviso": forms.BoolValue(true)}))
	})

	t.Run("optional empty field passes format rules", func(t *testing.T) {
		spec := forms.FieldSpec{Name: "correo", Kind: forms.KindText, Format: forms.FormatEmail}
		assert.Empty(t, Field(spec, map[string]forms.Value{}))
	})
}

func TestChoiceOptions(t *testing.T) {
	spec := forms.FieldSpec{Name: "giro", Kind: forms.KindChoice, Required: true,
		Options: []string{"comercio", "otro"}}

	assert.Empty(t, Field(spec, map[string]forms.Value{"giro": forms.TextValue("comercio")}))
	assert.NotEmpty(t, Field(spec, map[string]forms.Value{"giro": forms.TextValue("mineria")}))
}

func TestCatalogDefinitionsAreValidatable(t *testing.T) {
	// Every catalog form with no values should report its required fields
	// and nothing should panic.
	for _, def := range forms.NewCatalog().List() {
		t.Run(def.ID, func(t *testing.T) {
			errs := Definition(def, map[string]forms.Value{})
			assert.NotEmpty(t, errs, "empty snapshot should violate required rules")
		})
	}
}

func cloneValues(in map[string]forms.Value) map[string]forms.Value {
	out := make(map[string]forms.Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
