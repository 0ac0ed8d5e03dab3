package ingest

import "strings"

// countryNames maps ISO country codes appearing in the dataset to display
// names. Unknown codes fall through to the code itself.
var countryNames = map[string]string{
	"CN": "China", "CL": "Chile", "OM": "Oman", "DE": "Germany", "BR": "Brazil",
	"US": "United States", "MZ": "Mozambique", "SA": "Saudi Arabia", "BH": "Bahrain",
	"ES": "Spain", "IT": "Italy", "AE": "UAE", "MX": "Mexico", "PE": "Peru",
	"MY": "Malaysia", "TH": "Thailand", "IN": "India", "TR": "Turkey", "FR": "France",
	"NL": "Netherlands", "BE": "Belgium", "GB": "United Kingdom", "PT": "Portugal",
	"AU": "Australia", "NZ": "New Zealand", "JP": "Japan", "KR": "South Korea",
	"SG": "Singapore", "ID": "Indonesia", "PH": "Philippines", "VN": "Vietnam",
	"EG": "Egypt", "ZA": "South Africa", "AR": "Argentina", "CO": "Colombia",
	"FI": "Finland", "SE": "Sweden", "NO": "Norway", "DK": "Denmark",
	"PL": "Poland", "GR": "Greece", "RO": "Romania", "EE": "Estonia",
	"SI": "Slovenia", "HR": "Croatia", "IE": "Ireland", "HK": "Hong Kong",
	"TW": "Taiwan", "MA": "Morocco", "KE": "Kenya", "CA": "Canada",
	"CR": "Costa Rica", "PA": "Panama",
}

// portNames maps UN/LOCODEs seen in the dataset to port city names.
// A LOCODE absent from the table keeps its raw code as the display name.
var portNames = map[string]string{
	"COCTG": "Cartagena", "CRPMN": "Puerto Moín", "CRCAL": "Puerto Caldera",
	"ROCND": "Constanta", "EETLL": "Tallinn", "AUSYD": "Sydney",
	"AUFRE": "Fremantle", "FIHEL": "Helsinki", "SIKOP": "Koper",
	"SEGOT": "Gothenburg", "ESBCN": "Barcelona", "BRSSZ": "Santos",
	"GBSOU": "Southampton", "NZAKL": "Auckland", "HKHKG": "Hong Kong",
	"CNSHA": "Shanghai", "CNNBO": "Ningbo", "DEHAM": "Hamburg",
	"NLRTM": "Rotterdam", "BEANR": "Antwerp", "ITGOA": "Genoa",
	"FRLEH": "Le Havre", "USLAX": "Los Angeles", "USHOU": "Houston",
	"CLSAI": "San Antonio", "OMSOH": "Sohar", "SGSIN": "Singapore",
	"AEJEA": "Jebel Ali",
}

// CountryName resolves an ISO country code to its display name.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "Unknown"
	}
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// PortCountry resolves a UN/LOCODE to the country display name using the
// LOCODE's leading country code.
func PortCountry(locode string) string {
	locode = strings.ToUpper(strings.TrimSpace(locode))
	if len(locode) < 2 {
		return "Unknown"
	}
	return CountryName(locode[:2])
}

// PortName resolves a UN/LOCODE to a port city name, falling back to the
// raw code.
func PortName(locode string) string {
	locode = strings.ToUpper(strings.TrimSpace(locode))
	if name, ok := portNames[locode]; ok {
		return name
	}
	if locode == "" {
		return "Unknown"
	}
	return locode
}

// RouteLabel builds the human-readable route name used throughout the API:
// origin country → destination country.
func RouteLabel(originLocode, destLocode string) string {
	if originLocode == "" || destLocode == "" {
		return ""
	}
	return PortCountry(originLocode) + " → " + PortCountry(destLocode)
}
