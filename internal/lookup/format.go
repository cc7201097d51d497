package lookup

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Formatted is the displayable form of a lookup payload. When the upstream
// record carries a photo it travels out-of-band in PhotoURL so the channel
// can attach it as media instead of pasting a link.
type Formatted struct {
	Text     string
	PhotoURL string
}

// maxDisplayedRecords caps how many candidate records are rendered before a
// trailing "N more" note.
const maxDisplayedRecords = 5

// fieldRule is one named extraction rule: a display label plus the upstream
// field aliases it tolerates, in priority order.
type fieldRule struct {
	label   string
	aliases []string
}

// recordFields enumerates the supported record fields as data, so the set of
// tolerated upstream shapes stays testable instead of scattered in code.
var recordFields = []fieldRule{
	{"Nombre", []string{"nombres", "nombre", "nombreCompleto", "nombre_completo", "name", "full_name"}},
	{"Cédula", []string{"cedula", "identificacion", "dni", "documento"}},
	{"Dirección", []string{"direccion", "domicilio", "address"}},
	{"Estado civil", []string{"estadoCivil", "estado_civil", "civil_status"}},
	{"Profesión", []string{"profesion", "ocupacion", "profession"}},
	{"Placa", []string{"placa", "plate"}},
	{"Marca", []string{"marca", "brand", "make"}},
	{"Modelo", []string{"modelo", "model"}},
	{"Año", []string{"anio", "año", "year"}},
	{"Color", []string{"color"}},
	{"Propietario", []string{"propietario", "owner"}},
}

// dobAliases are the field names a date-of-birth may hide under.
var dobAliases = []string{"fechaNacimiento", "fecha_nacimiento", "nacimiento", "birth_date", "birthdate", "fecha_nac"}

// photoAliases are the field names a photo reference may hide under.
var photoAliases = []string{"foto", "foto_url", "urlFoto", "photo", "photo_url", "imagen", "image", "image_url"}

// foundAliases mark the boolean-like "found" flag of the envelope shape.
var foundAliases = []string{"found", "encontrado", "success", "ok"}

// payloadAliases are where the envelope shape nests its actual payload.
var payloadAliases = []string{"data", "mensaje", "resultado", "persona", "result", "payload"}

// inlinePhotoRe matches a "Foto: <url>" fragment inside pre-formatted text.
var inlinePhotoRe = regexp.MustCompile(`(?i)(?:🖼️\s*)?Foto:\s*(https?://[^\s\n]+)\s*`)

var noResultsText = map[Kind]string{
	KindName:  "❌ No se encontraron personas con ese nombre.",
	KindID:    "❌ No se encontró información para esta cédula.",
	KindPlate: "❌ No se encontró información para esta placa.",
}

var resultHeader = map[Kind]string{
	KindName:  "✅ *Resultados de la búsqueda*",
	KindID:    "✅ *Resultado de la búsqueda*",
	KindPlate: "✅ *Resultado de la búsqueda de placa*",
}

const resultFooter = "\n\n_Escribe \"menu\" para volver al menú principal_"

// Format renders a successful lookup payload for the user. It tolerates the
// known envelope shapes and degrades to a "no results" message when none of
// the recognized fields match.
func Format(kind Kind, data json.RawMessage) Formatted {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Formatted{Text: noResultsText[kind]}
	}
	return FormatAt(kind, parsed, time.Now())
}

// FormatAt is Format with an injectable clock for age derivation.
func FormatAt(kind Kind, parsed any, now time.Time) Formatted {
	switch v := parsed.(type) {
	case map[string]any:
		return formatEnvelope(kind, v, now)
	case []any:
		return wrap(kind, renderRecords(v, now))
	default:
		return Formatted{Text: noResultsText[kind]}
	}
}

// formatEnvelope handles the found-flag shape: a boolean-like flag with the
// payload nested under one of several field names. A payload with no flag at
// all is treated as found when a recognizable payload field exists.
func formatEnvelope(kind Kind, envelope map[string]any, now time.Time) Formatted {
	for _, flag := range foundAliases {
		if raw, ok := envelope[flag]; ok {
			if found, ok := raw.(bool); ok && !found {
				return Formatted{Text: noResultsText[kind]}
			}
		}
	}

	for _, alias := range payloadAliases {
		payload, ok := envelope[alias]
		if !ok || payload == nil {
			continue
		}
		switch p := payload.(type) {
		case string:
			text, photo := extractInlinePhoto(p)
			if strings.TrimSpace(text) == "" {
				return Formatted{Text: noResultsText[kind], PhotoURL: photo}
			}
			out := wrap(kind, strings.TrimSpace(text))
			out.PhotoURL = photo
			return out
		case map[string]any:
			body, photo := renderRecord(p, now)
			if body == "" {
				return Formatted{Text: noResultsText[kind]}
			}
			out := wrap(kind, body)
			out.PhotoURL = photo
			return out
		case []any:
			return wrap(kind, renderRecords(p, now))
		}
	}

	// No envelope payload; maybe the object is a bare record.
	if body, photo := renderRecord(envelope, now); body != "" {
		out := wrap(kind, body)
		out.PhotoURL = photo
		return out
	}
	return Formatted{Text: noResultsText[kind]}
}

func wrap(kind Kind, body string) Formatted {
	if body == "" {
		return Formatted{Text: noResultsText[kind]}
	}
	return Formatted{Text: resultHeader[kind] + "\n\n" + body + resultFooter}
}

// renderRecords renders up to maxDisplayedRecords entries with a trailing
// remainder note.
func renderRecords(items []any, now time.Time) string {
	var blocks []string
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if body, _ := renderRecord(record, now); body != "" {
			blocks = append(blocks, body)
		}
	}
	if len(blocks) == 0 {
		return ""
	}

	shown := blocks
	if len(shown) > maxDisplayedRecords {
		shown = shown[:maxDisplayedRecords]
	}
	out := strings.Join(shown, "\n\n")
	if remainder := len(blocks) - len(shown); remainder > 0 {
		out += fmt.Sprintf("\n\n_y %d resultado(s) más_", remainder)
	}
	return out
}

// renderRecord renders one record through the extraction rules, returning the
// text block and any photo reference found under the known aliases.
func renderRecord(record map[string]any, now time.Time) (string, string) {
	var lines []string
	for _, rule := range recordFields {
		if value, ok := firstString(record, rule.aliases); ok {
			lines = append(lines, fmt.Sprintf("%s: %s", rule.label, value))
		}
	}

	if dob, ok := firstString(record, dobAliases); ok {
		lines = append(lines, fmt.Sprintf("Fecha de nacimiento: %s", dob))
		if age, ok := deriveAge(dob, now); ok {
			lines = append(lines, fmt.Sprintf("Edad: %d años", age))
		}
	}

	photo, _ := firstString(record, photoAliases)
	return strings.Join(lines, "\n"), photo
}

// firstString returns the first alias present in record as a display string.
// Numbers are accepted; nested values are not.
func firstString(record map[string]any, aliases []string) (string, bool) {
	for _, alias := range aliases {
		raw, ok := record[alias]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v)), true
			}
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}

// extractInlinePhoto pulls a "Foto: <url>" fragment out of pre-formatted
// upstream text, returning the cleaned text and the URL.
func extractInlinePhoto(text string) (string, string) {
	match := inlinePhotoRe.FindStringSubmatch(text)
	if match == nil {
		return text, ""
	}
	cleaned := inlinePhotoRe.ReplaceAllString(text, "")
	return cleaned, match[1]
}

// dobLayouts are tried in order; ambiguity resolves in favor of ISO.
var dobLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	time.RFC3339,
}

// deriveAge computes whole years elapsed since the birth date, subtracting
// one when the birthday has not yet occurred this year. Unparseable dates
// yield no age rather than an error.
func deriveAge(dob string, now time.Time) (int, bool) {
	dob = strings.TrimSpace(dob)
	var birth time.Time
	var err error
	for _, layout := range dobLayouts {
		birth, err = time.Parse(layout, dob)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0, false
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
