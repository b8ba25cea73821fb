package renapo

// birthStates maps the registry's two-letter birth-jurisdiction codes (the
// codes embedded in every CURP) to state names.
var birthStates = map[string]string{
	"AS": "Aguascalientes",
	"BC": "Baja California",
	"BS": "Baja California Sur",
	"CC": "Campeche",
	"CS": "Chiapas",
	"CH": "Chihuahua",
	"CL": "Coahuila",
	"CM": "Colima",
	"DF": "Ciudad de México",
	"DG": "Durango",
	"GT": "Guanajuato",
	"GR": "Guerrero",
	"HG": "Hidalgo",
	"JC": "Jalisco",
	"MC": "Estado de México",
	"MN": "Michoacán",
	"MS": "Morelos",
	"NT": "Nayarit",
	"NL": "Nuevo León",
	"OC": "Oaxaca",
	"PL": "Puebla",
	"QT": "Querétaro",
	"QR": "Quintana Roo",
	"SP": "San Luis Potosí",
	"SL": "Sinaloa",
	"SR": "Sonora",
	"TC": "Tabasco",
	"TS": "Tamaulipas",
	"TL": "Tlaxcala",
	"VZ": "Veracruz",
	"YN": "Yucatán",
	"ZS": "Zacatecas",
	"NE": "Nacido en el Extranjero",
}

// StateName resolves a two-letter birth-state code.
func StateName(code string) (string, bool) {
	name, ok := birthStates[code]
	return name, ok
}
