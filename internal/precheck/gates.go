package precheck

import (
	"context"

	"intake-gateway/internal/clients/renapo"
	"intake-gateway/internal/clients/sif"
	"intake-gateway/internal/forms"
)

// CURPPrechecker is the existence-check slice of the SIF client.
type CURPPrechecker interface {
	PrecheckCURP(ctx context.Context, curp string) (*sif.PrecheckResult, error)
}

// CURPVerifier is the registry-lookup slice of the RENAPO client.
type CURPVerifier interface {
	Verify(ctx context.Context, curp string) (*renapo.Person, error)
}

// PhonePrechecker is the phone-uniqueness slice of the SIF client.
type PhonePrechecker interface {
	PrecheckPhone(ctx context.Context, phone string) (*sif.PrecheckResult, error)
}

// NewIdentityGate wires the CURP check: SIF precheck, then RENAPO verify,
// then auto-fill of the person fields the registry is authoritative for.
func NewIdentityGate(pre CURPPrechecker, ver CURPVerifier) *Gate[*renapo.Person] {
	return &Gate[*renapo.Person]{
		Precheck:  pre.PrecheckCURP,
		Verify:    ver.Verify,
		MapFields: personFields,
		Messages: Messages{
			Blocked: "la CURP ya cuenta con un registro",
			Failed:  "no fue posible validar la CURP",
		},
	}
}

// NewPhoneGate wires the phone uniqueness check. No verify step: the
// precheck clearing is the whole protocol.
func NewPhoneGate(pre PhonePrechecker) *Gate[struct{}] {
	return &Gate[struct{}]{
		Precheck: pre.PrecheckPhone,
		Messages: Messages{
			Blocked: "teléfono ya registrado",
			Failed:  "no fue posible verificar el teléfono",
		},
	}
}

// personFields maps a verified person onto the wizard's dependent fields.
// Birth date is rendered back to DD/MM/YYYY, the format the forms display.
func personFields(p *renapo.Person) map[string]forms.Value {
	return map[string]forms.Value{
		"nombre":           forms.TextValue(p.GivenNames),
		"apellidoPaterno":  forms.TextValue(p.PaternalName),
		"apellidoMaterno":  forms.TextValue(p.MaternalName),
		"fechaNacimiento":  forms.TextValue(p.BirthDate.Format("02/01/2006")),
		"estadoNacimiento": forms.TextValue(p.BirthState),
	}
}
