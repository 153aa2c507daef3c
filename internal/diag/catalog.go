package diag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTest is returned when a label or wire id is not in the catalog.
var ErrUnknownTest = errors.New("unknown test")

// TestDefinition describes one device test.
type TestDefinition struct {
	Label  string // display label, e.g. "HP Écouteur"
	WireID string // wire identifier, e.g. "HP_ECOUTEUR"
	Manual bool   // result is judged by the operator (audio output)
}

// canonicalLabels is the single test list shared with the companion app.
var canonicalLabels = []string{
	"Wifi",
	"Bluetooth",
	"Flash",
	"Micro Avant",
	"Micro Arr.",
	"HP Écouteur",
	"HP Bas (Média)",
	"Vibreur",
	"Caméra Av.",
	"Caméra Arr.",
	"Écran",
	"Accéléromètre",
	"Proximité",
	"Face ID",
	"Boutons Vol",
	"Tactile",
}

// manualTests cannot self-verify; the phone plays a tone and the operator
// decides.
var manualTests = map[string]bool{
	"HP_ECOUTEUR":  true,
	"HP_BAS_MEDIA": true,
}

// DefaultDefinitions returns the canonical test table with derived wire ids.
func DefaultDefinitions() []TestDefinition {
	defs := make([]TestDefinition, 0, len(canonicalLabels))
	for _, label := range canonicalLabels {
		id := wireIDFor(label)
		defs = append(defs, TestDefinition{Label: label, WireID: id, Manual: manualTests[id]})
	}
	return defs
}

// Catalog is an immutable, ordered set of test definitions with lookups in
// both directions.
type Catalog struct {
	defs    []TestDefinition
	byLabel map[string]int
	byWire  map[string]int
}

// NewCatalog validates defs and builds a Catalog. Labels and wire ids must
// be non-empty and unique.
func NewCatalog(defs []TestDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:    make([]TestDefinition, len(defs)),
		byLabel: make(map[string]int, len(defs)),
		byWire:  make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		if d.Label == "" || d.WireID == "" {
			return nil, fmt.Errorf("test definition %d: empty label or wire id", i)
		}
		if _, dup := c.byLabel[d.Label]; dup {
			return nil, fmt.Errorf("duplicate label %q", d.Label)
		}
		if _, dup := c.byWire[d.WireID]; dup {
			return nil, fmt.Errorf("duplicate wire id %q", d.WireID)
		}
		c.byLabel[d.Label] = i
		c.byWire[d.WireID] = i
	}
	return c, nil
}

// DefaultCatalog returns the catalog built from the canonical table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic("diag: canonical test table: " + err.Error())
	}
	return c
}

// Tests returns the definitions in catalog order.
func (c *Catalog) Tests() []TestDefinition {
	out := make([]TestDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }

// Label resolves a wire id to its display label. It reports false when the
// label produced by the override table or the title-case fallback is not a
// configured test, so callers can drop the update.
func (c *Catalog) Label(wireID string) (string, bool) {
	label := labelFor(strings.TrimSpace(wireID))
	if _, ok := c.byLabel[label]; !ok {
		return "", false
	}
	return label, true
}

// WireID resolves a display label to the identifier sent on the wire.
func (c *Catalog) WireID(label string) (string, bool) {
	i, ok := c.byLabel[label]
	if !ok {
		return "", false
	}
	return c.defs[i].WireID, true
}

// Lookup finds a definition by display label or wire id.
func (c *Catalog) Lookup(name string) (TestDefinition, bool) {
	name = strings.TrimSpace(name)
	if i, ok := c.byLabel[name]; ok {
		return c.defs[i], true
	}
	if i, ok := c.byWire[strings.ToUpper(name)]; ok {
		return c.defs[i], true
	}
	return TestDefinition{}, false
}
