package lookup

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_FoundEnvelopeWithRecord(t *testing.T) {
	payload := json.RawMessage(`{
		"found": true,
		"data": {
			"nombres": "Juan Pérez",
			"cedula": "1234567890",
			"direccion": "Av. Amazonas 123"
		}
	}`)

	out := Format(KindID, payload)
	assert.Contains(t, out.Text, "✅ *Resultado de la búsqueda*")
	assert.Contains(t, out.Text, "Nombre: Juan Pérez")
	assert.Contains(t, out.Text, "Cédula: 1234567890")
	assert.Contains(t, out.Text, "Dirección: Av. Amazonas 123")
	assert.Contains(t, out.Text, `_Escribe "menu" para volver al menú principal_`)
	assert.Empty(t, out.PhotoURL)
}

func TestFormat_FoundEnvelopeAliases(t *testing.T) {
	// Same semantics, different flag and payload field names.
	payload := json.RawMessage(`{
		"encontrado": true,
		"persona": {"nombre": "Maria Lopez"}
	}`)

	out := Format(KindID, payload)
	assert.Contains(t, out.Text, "Nombre: Maria Lopez")
}

func TestFormat_NotFoundEnvelope(t *testing.T) {
	payload := json.RawMessage(`{"found": false, "data": null}`)
	out := Format(KindID, payload)
	assert.Equal(t, "❌ No se encontró información para esta cédula.", out.Text)
}

func TestFormat_PreformattedStringPayload(t *testing.T) {
	payload := json.RawMessage(`{
		"data": "Nombre: Juan Pérez\nCédula: 1234567890\n🖼️ Foto: https://cdn.example.com/foto.jpg\nDirección: Quito"
	}`)

	out := Format(KindID, payload)
	assert.Equal(t, "https://cdn.example.com/foto.jpg", out.PhotoURL)
	assert.NotContains(t, out.Text, "Foto:", "inline photo line must be stripped from the text")
	assert.Contains(t, out.Text, "Nombre: Juan Pérez")
	assert.Contains(t, out.Text, "Dirección: Quito")
}

func TestFormat_PreformattedPhotoWithoutEmoji(t *testing.T) {
	payload := json.RawMessage(`{"mensaje": "Juan Pérez\nFoto: https://cdn.example.com/p.png"}`)
	out := Format(KindID, payload)
	assert.Equal(t, "https://cdn.example.com/p.png", out.PhotoURL)
	assert.NotContains(t, out.Text, "https://cdn.example.com/p.png")
}

func TestFormat_PhotoFieldAliases(t *testing.T) {
	for _, alias := range []string{"foto", "photo", "imagen", "image_url", "foto_url"} {
		t.Run(alias, func(t *testing.T) {
			payload := json.RawMessage(fmt.Sprintf(
				`{"found": true, "data": {"nombres": "Ana", %q: "https://x.example/a.jpg"}}`, alias))
			out := Format(KindID, payload)
			assert.Equal(t, "https://x.example/a.jpg", out.PhotoURL)
		})
	}
}

func TestFormat_FlatArrayOfRecords(t *testing.T) {
	payload := json.RawMessage(`[
		{"nombres": "Juan Uno"},
		{"nombres": "Juan Dos"},
		{"nombres": "Juan Tres"}
	]`)

	out := Format(KindName, payload)
	assert.Contains(t, out.Text, "✅ *Resultados de la búsqueda*")
	assert.Contains(t, out.Text, "Juan Uno")
	assert.Contains(t, out.Text, "Juan Tres")
	assert.NotContains(t, out.Text, "más_")
}

func TestFormat_ArrayCappedWithRemainderNote(t *testing.T) {
	var records []string
	for i := 1; i <= 9; i++ {
		records = append(records, fmt.Sprintf(`{"nombres": "Persona %d"}`, i))
	}
	payload := json.RawMessage("[" + strings.Join(records, ",") + "]")

	out := Format(KindName, payload)
	assert.Contains(t, out.Text, "Persona 5")
	assert.NotContains(t, out.Text, "Persona 6")
	assert.Contains(t, out.Text, "_y 4 resultado(s) más_")
}

func TestFormat_UnrecognizedShapeDegrades(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty object", `{}`},
		{"scalar", `42`},
		{"string", `"hello"`},
		{"record with unknown fields only", `{"zzz": "yyy"}`},
		{"array of scalars", `[1, 2, 3]`},
		{"not json at all", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Format(KindPlate, json.RawMessage(tt.payload))
			assert.Equal(t, "❌ No se encontró información para esta placa.", out.Text)
			assert.Empty(t, out.PhotoURL)
		})
	}
}

func TestFormat_VehicleRecord(t *testing.T) {
	payload := json.RawMessage(`{
		"found": true,
		"data": {"placa": "ABC1234", "marca": "Chevrolet", "modelo": "Aveo", "anio": 2015, "color": "Rojo", "propietario": "Juan Pérez"}
	}`)

	out := Format(KindPlate, payload)
	assert.Contains(t, out.Text, "✅ *Resultado de la búsqueda de placa*")
	assert.Contains(t, out.Text, "Placa: ABC1234")
	assert.Contains(t, out.Text, "Marca: Chevrolet")
	assert.Contains(t, out.Text, "Año: 2015")
	assert.Contains(t, out.Text, "Propietario: Juan Pérez")
}

func TestFormat_AgeDerivedFromBirthDate(t *testing.T) {
	parsed := map[string]any{
		"found": true,
		"data": map[string]any{
			"nombres":          "Juan Pérez",
			"fecha_nacimiento": "2000-06-15",
		},
	}

	beforeBirthday := time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)
	out := FormatAt(KindID, parsed, beforeBirthday)
	assert.Contains(t, out.Text, "Edad: 23 años")

	afterBirthday := time.Date(2024, 6, 16, 12, 0, 0, 0, time.UTC)
	out = FormatAt(KindID, parsed, afterBirthday)
	assert.Contains(t, out.Text, "Edad: 24 años")
}

func TestDeriveAge(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dob     string
		wantAge int
		wantOK  bool
	}{
		{"iso dash", "2000-06-15", 24, true},
		{"iso slash", "2000/06/15", 24, true},
		{"day first dash", "15-06-2000", 24, true},
		{"day first slash", "15/06/2000", 24, true},
		{"rfc3339 fallback", "2000-06-15T00:00:00Z", 24, true},
		{"day before birthday", "2000-06-16", 23, true},
		{"month before birthday", "2000-07-01", 23, true},
		{"month after birthday", "2000-05-31", 24, true},
		{"unparseable", "15 de junio del 2000", 0, false},
		{"empty", "", 0, false},
		{"future date", "2030-01-01", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, ok := deriveAge(tt.dob, now)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantAge, age)
			}
		})
	}
}

func TestExtractInlinePhoto(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantURL   string
		wantClean string
	}{
		{
			name:      "emoji prefix",
			input:     "Juan\n🖼️ Foto: https://x.example/a.jpg\nQuito",
			wantURL:   "https://x.example/a.jpg",
			wantClean: "Juan\nQuito",
		},
		{
			name:      "plain prefix case-insensitive",
			input:     "Juan\nfoto: https://x.example/a.jpg",
			wantURL:   "https://x.example/a.jpg",
			wantClean: "Juan\n",
		},
		{
			name:      "no photo",
			input:     "Juan Pérez",
			wantURL:   "",
			wantClean: "Juan Pérez",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, url := extractInlinePhoto(tt.input)
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantClean, clean)
		})
	}
}
