package forms

// Catalog holds the registered intake forms keyed by ID.
type Catalog struct {
	defs  map[string]*Definition
	order []string
}

// NewCatalog builds the standard catalog of intake forms.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]*Definition)}
	for _, d := range []*Definition{
		AperturaEmpresas(),
		PromocionTuristica(),
		TandaSolidaria(),
		PromocionInversion(),
		FeriasFestivales(),
		EscaneoDocumento(),
	} {
		c.defs[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c
}

// Get returns the definition for a form ID.
func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// List returns all definitions in registration order.
func (c *Catalog) List() []*Definition {
	out := make([]*Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// Shared field blocks. The personal-data and address steps repeat across
// forms with identical rules, so they are built once here.

func personalStep() Step {
	return Step{
		Name:  "datos-personales",
		Title: "Datos personales",
		Fields: []FieldSpec{
			{Name: "curp", Label: "CURP", Kind: KindText, Required: true, Format: FormatCURP, Precondition: PreconditionIdentity},
			{Name: "nombre", Label: "Nombre(s)", Kind: KindText, Required: true, AutoFilled: true},
			{Name: "apellidoPaterno", Label: "Apellido paterno", Kind: KindText, Required: true, AutoFilled: true},
			{Name: "apellidoMaterno", Label: "Apellido materno", Kind: KindText, AutoFilled: true},
			{Name: "fechaNacimiento", Label: "Fecha de nacimiento", Kind: KindText, Required: true, AutoFilled: true},
			{Name: "estadoNacimiento", Label: "Estado de nacimiento", Kind: KindText, Required: true, AutoFilled: true},
			{Name: "telefono", Label: "Teléfono celular", Kind: KindDigits, Required: true, Format: FormatPhone, Precondition: PreconditionPhone},
			{Name: "correo", Label: "Correo electrónico", Kind: KindText, Format: FormatEmail},
		},
	}
}

func addressStep() Step {
	return Step{
		Name:  "domicilio",
		Title: "Domicilio",
		Fields: []FieldSpec{
			{Name: "codigoPostal", Label: "Código postal", Kind: KindDigits, Required: true, Format: FormatPostal},
			{Name: "municipio", Label: "Municipio", Kind: KindChoice, Required: true},
			{Name: "localidad", Label: "Localidad", Kind: KindChoice, Required: true, DependsOn: "municipio"},
			{Name: "colonia", Label: "Colonia", Kind: KindText, Required: true},
			{Name: "calle", Label: "Calle", Kind: KindText, Required: true},
			{Name: "numeroExterior", Label: "Número exterior", Kind: KindText, Required: true},
		},
	}
}

// AperturaEmpresas is the business-development intake: open a new business
// with the state economic development office.
func AperturaEmpresas() *Definition {
	return &Definition{
		ID:   "apertura-empresas",
		Name: "Apertura de Empresas",
		Steps: []Step{
			personalStep(),
			addressStep(),
			{
				Name:  "negocio",
				Title: "Datos del negocio",
				Fields: []FieldSpec{
					{Name: "nombreNegocio", Label: "Nombre del negocio", Kind: KindText, Required: true},
					{Name: "giro", Label: "Giro", Kind: KindChoice, Required: true,
						Options: []string{"comercio", "servicios", "industria", "agropecuario", "otro"}},
					{Name: "otroGiro", Label: "Especifique el giro", Kind: KindText,
						RequiredIf: &Condition{Sibling: "giro", Triggers: []string{"otro"}}},
					{Name: "serviciosInteres", Label: "Servicios de interés", Kind: KindMultiChoice, MinItems: 1,
						Options: []string{"asesoria", "capacitacion", "financiamiento", "tramites", "vinculacion"}},
					{Name: "empleados", Label: "Número de empleados", Kind: KindDigits},
					{Name: "yaOpera", Label: "¿El negocio ya opera?", Kind: KindBool},
				},
			},
			{
				Name:      "evidencia",
				Title:     "Fotografías del local",
				MaxPhotos: 3,
			},
		},
	}
}

// PromocionTuristica is the tourism-promotion intake for service providers.
func PromocionTuristica() *Definition {
	return &Definition{
		ID:   "promocion-turistica",
		Name: "Promoción Turística",
		Steps: []Step{
			personalStep(),
			{
				Name:  "establecimiento",
				Title: "Establecimiento turístico",
				Fields: []FieldSpec{
					{Name: "nombreEstablecimiento", Label: "Nombre del establecimiento", Kind: KindText, Required: true},
					{Name: "tipoServicio", Label: "Tipo de servicio", Kind: KindChoice, Required: true,
						Options: []string{"hospedaje", "alimentos", "agencia", "transporte", "guia", "otro"}},
					{Name: "otroTipoServicio", Label: "Especifique el tipo de servicio", Kind: KindText,
						RequiredIf: &Condition{Sibling: "tipoServicio", Triggers: []string{"otro"}}},
					{Name: "municipio", Label: "Municipio", Kind: KindChoice, Required: true},
					{Name: "localidad", Label: "Localidad", Kind: KindChoice, Required: true, DependsOn: "municipio"},
					{Name: "temporadas", Label: "Temporadas de operación", Kind: KindMultiChoice, MinItems: 1,
						Options: []string{"semana-santa", "verano", "invierno", "todo-el-año"}},
				},
			},
			{
				Name:      "evidencia",
				Title:     "Fotografías del establecimiento",
				MaxPhotos: 3,
			},
		},
	}
}

// TandaSolidaria is the social-economy revolving-loan ("tanda") intake.
func TandaSolidaria() *Definition {
	return &Definition{
		ID:   "tanda-solidaria",
		Name: "Tanda Solidaria",
		Steps: []Step{
			personalStep(),
			addressStep(),
			{
				Name:  "solicitud",
				Title: "Datos de la solicitud",
				Fields: []FieldSpec{
					{Name: "ocupacion", Label: "Ocupación", Kind: KindChoice, Required: true,
						Options: []string{"comerciante", "artesano", "agricultor", "pescador", "ama-de-casa", "otro"}},
					{Name: "otraOcupacion", Label: "Especifique la ocupación", Kind: KindText,
						RequiredIf: &Condition{Sibling: "ocupacion", Triggers: []string{"otro"}}},
					{Name: "montoSolicitado", Label: "Monto solicitado", Kind: KindDigits, Required: true},
					{Name: "destinoRecurso", Label: "Destino del recurso", Kind: KindText, Required: true},
					{Name: "primeraVez", Label: "¿Primera vez que solicita?", Kind: KindBool},
				},
			},
		},
	}
}

// PromocionInversion is the investment-promotion intake for companies.
func PromocionInversion() *Definition {
	return &Definition{
		ID:   "promocion-inversion",
		Name: "Promoción a la Inversión",
		Steps: []Step{
			{
				Name:  "contacto",
				Title: "Datos de contacto",
				Fields: []FieldSpec{
					{Name: "nombreContacto", Label: "Nombre del contacto", Kind: KindText, Required: true},
					{Name: "cargo", Label: "Cargo", Kind: KindText, Required: true},
					{Name: "telefono", Label: "Teléfono celular", Kind: KindDigits, Required: true, Format: FormatPhone, Precondition: PreconditionPhone},
					{Name: "correo", Label: "Correo electrónico", Kind: KindText, Required: true, Format: FormatEmail},
				},
			},
			{
				Name:  "proyecto",
				Title: "Proyecto de inversión",
				Fields: []FieldSpec{
					{Name: "nombreEmpresa", Label: "Nombre de la empresa", Kind: KindText, Required: true},
					{Name: "sector", Label: "Sector", Kind: KindChoice, Required: true,
						Options: []string{"energia", "agroindustria", "turismo", "manufactura", "logistica", "otro"}},
					{Name: "otroSector", Label: "Especifique el sector", Kind: KindText,
						RequiredIf: &Condition{Sibling: "sector", Triggers: []string{"otro"}}},
					{Name: "montoEstimado", Label: "Monto estimado de inversión", Kind: KindDigits, Required: true},
					{Name: "empleosEstimados", Label: "Empleos estimados", Kind: KindDigits},
					{Name: "municipio", Label: "Municipio de interés", Kind: KindChoice, Required: true},
					{Name: "localidad", Label: "Localidad", Kind: KindChoice, DependsOn: "municipio"},
				},
			},
		},
	}
}

// FeriasFestivales is the fairs-and-festivals participation intake.
func FeriasFestivales() *Definition {
	return &Definition{
		ID:   "ferias-festivales",
		Name: "Ferias y Festivales",
		Steps: []Step{
			personalStep(),
			{
				Name:  "evento",
				Title: "Datos del evento",
				Fields: []FieldSpec{
					{Name: "nombreEvento", Label: "Nombre del evento", Kind: KindText, Required: true},
					{Name: "municipio", Label: "Municipio sede", Kind: KindChoice, Required: true},
					{Name: "localidad", Label: "Localidad", Kind: KindChoice, Required: true, DependsOn: "municipio"},
					{Name: "tipoParticipacion", Label: "Tipo de participación", Kind: KindChoice, Required: true,
						Options: []string{"expositor", "artesano", "gastronomia", "cultural", "otro"}},
					{Name: "otraParticipacion", Label: "Especifique la participación", Kind: KindText,
						RequiredIf: &Condition{Sibling: "tipoParticipacion", Triggers: []string{"otro"}}},
					{Name: "requerimientos", Label: "Requerimientos", Kind: KindMultiChoice, MinItems: 1,
						Options: []string{"stand", "mesa", "energia-electrica", "agua", "sonido"}},
				},
			},
			{
				Name:      "evidencia",
				Title:     "Fotografías de productos",
				MaxPhotos: 3,
			},
		},
	}
}

// EscaneoDocumento is the OCR-assisted identity-document capture intake: a
// scan feeds structured fields into the wizard, the applicant confirms them.
func EscaneoDocumento() *Definition {
	return &Definition{
		ID:   "escaneo-documento",
		Name: "Registro por Documento de Identidad",
		Steps: []Step{
			{
				Name:  "captura",
				Title: "Captura del documento",
				Fields: []FieldSpec{
					{Name: "tipoDocumento", Label: "Tipo de documento", Kind: KindChoice, Required: true,
						Options: []string{"ine", "pasaporte", "cedula"}},
					{Name: "curp", Label: "CURP", Kind: KindText, Required: true, Format: FormatCURP, Precondition: PreconditionIdentity, AutoFilled: true},
					{Name: "nombre", Label: "Nombre(s)", Kind: KindText, Required: true, AutoFilled: true},
					{Name: "apellidoPaterno", Label: "Apellido paterno", Kind: KindText, Required: true, AutoFilled: true},
					{Name: "apellidoMaterno", Label: "Apellido materno", Kind: KindText, AutoFilled: true},
					{Name: "fechaNacimiento", Label: "Fecha de nacimiento", Kind: KindText, Required: true, AutoFilled: true},
					{Name: "estadoNacimiento", Label: "Estado de nacimiento", Kind: KindText, Required: true, AutoFilled: true},
				},
				MaxPhotos: 3,
			},
			{
				Name:  "confirmacion",
				Title: "Confirmación de datos",
				Fields: []FieldSpec{
					{Name: "telefono", Label: "Teléfono celular", Kind: KindDigits, Required: true, Format: FormatPhone, Precondition: PreconditionPhone},
					{Name: "correo", Label: "Correo electrónico", Kind: KindText, Format: FormatEmail},
					{Name: "aceptaAviso", Label: "Acepta el aviso de privacidad", Kind: KindBool, Required: true},
				},
			},
		},
	}
}
