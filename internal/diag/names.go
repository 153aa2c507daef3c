package diag

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// labelOverrides lists the irregular wire id -> display label pairs that
// the normalization rule cannot produce or invert.
var labelOverrides = map[string]string{
	"HP_ECOUTEUR":  "HP Écouteur",
	"HP_BAS_MEDIA": "HP Bas (Média)",
	"ECRAN":        "Écran",
	"MIC_AVANT":    "Micro Avant",
	"MIC_ARRIERE":  "Micro Arr.",
	"ACCEL":        "Accéléromètre",
	"PROXIMITE":    "Proximité",
	"BOUTONS_VOL":  "Boutons Vol",
	"CAMERA_AV":    "Caméra Av.",
	"CAMERA_ARR":   "Caméra Arr.",
	"FACE_ID":      "Face ID",
}

// wireOverrides is labelOverrides inverted.
var wireOverrides = func() map[string]string {
	m := make(map[string]string, len(labelOverrides))
	for id, label := range labelOverrides {
		m[label] = id
	}
	return m
}()

// Overrides returns a copy of the irregular wire id -> label table.
func Overrides() map[string]string {
	m := make(map[string]string, len(labelOverrides))
	for id, label := range labelOverrides {
		m[id] = label
	}
	return m
}

// StripAccents removes combining marks, e.g. "Écran" -> "Ecran".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeLabel applies the regular label -> wire id rule: uppercase,
// accents stripped, every run of spaces or punctuation collapsed to one
// underscore, no leading or trailing underscore.
// "HP Bas (Média)" -> "HP_BAS_MEDIA".
func NormalizeLabel(label string) string {
	s := strings.ToUpper(StripAccents(label))
	var b strings.Builder
	pending := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// titleFromWireID is the fallback wire id -> label rule: "BLUETOOTH" -> "Bluetooth".
// A Caser is stateful, so one is built per call.
func titleFromWireID(id string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(id, "_", " "))
}

// labelFor maps a wire id to a candidate label without checking it against
// a catalog.
func labelFor(id string) string {
	if label, ok := labelOverrides[id]; ok {
		return label
	}
	return titleFromWireID(id)
}

// wireIDFor maps a label to its wire id without checking it against a catalog.
func wireIDFor(label string) string {
	if id, ok := wireOverrides[label]; ok {
		return id
	}
	return NormalizeLabel(label)
}
