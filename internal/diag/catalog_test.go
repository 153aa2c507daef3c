package diag

import "testing"

func TestDefaultDefinitions_WireIDs(t *testing.T) {
	want := map[string]string{
		"Wifi":           "WIFI",
		"Bluetooth":      "BLUETOOTH",
		"Flash":          "FLASH",
		"Micro Avant":    "MIC_AVANT",
		"Micro Arr.":     "MIC_ARRIERE",
		"HP Écouteur":    "HP_ECOUTEUR",
		"HP Bas (Média)": "HP_BAS_MEDIA",
		"Vibreur":        "VIBREUR",
		"Caméra Av.":     "CAMERA_AV",
		"Caméra Arr.":    "CAMERA_ARR",
		"Écran":          "ECRAN",
		"Accéléromètre":  "ACCEL",
		"Proximité":      "PROXIMITE",
		"Face ID":        "FACE_ID",
		"Boutons Vol":    "BOUTONS_VOL",
		"Tactile":        "TACTILE",
	}
	defs := DefaultDefinitions()
	if len(defs) != len(want) {
		t.Fatalf("len(DefaultDefinitions()) = %d, want %d", len(defs), len(want))
	}
	for _, d := range defs {
		if got := d.WireID; got != want[d.Label] {
			t.Errorf("WireID(%q) = %q, want %q", d.Label, got, want[d.Label])
		}
	}
}

// TestCatalog_RoundTrip checks Label(WireID(label)) == label for every
// configured test.
func TestCatalog_RoundTrip(t *testing.T) {
	c := DefaultCatalog()
	for _, d := range c.Tests() {
		id, ok := c.WireID(d.Label)
		if !ok {
			t.Errorf("WireID(%q) not found", d.Label)
			continue
		}
		label, ok := c.Label(id)
		if !ok {
			t.Errorf("Label(%q) not found", id)
			continue
		}
		if label != d.Label {
			t.Errorf("Label(WireID(%q)) = %q", d.Label, label)
		}
	}
}

// TestCatalog_OverridesCovered checks every irregular entry resolves both
// ways through the default catalog.
func TestCatalog_OverridesCovered(t *testing.T) {
	c := DefaultCatalog()
	for id, label := range Overrides() {
		got, ok := c.Label(id)
		if !ok || got != label {
			t.Errorf("Label(%q) = %q, %v; want %q", id, got, ok, label)
		}
		back, ok := c.WireID(label)
		if !ok || back != id {
			t.Errorf("WireID(%q) = %q, %v; want %q", label, back, ok, id)
		}
	}
}

func TestCatalog_LabelNoMatch(t *testing.T) {
	c := DefaultCatalog()
	for _, id := range []string{"FOOBAR", "HP_BAS", "MICRO_ARR", "", "wifi_extra"} {
		if label, ok := c.Label(id); ok {
			t.Errorf("Label(%q) = %q, want no match", id, label)
		}
	}
	if id, ok := c.WireID("Haut-parleur"); ok {
		t.Errorf("WireID(unknown) = %q, want no match", id)
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		name      string
		wantLabel string
	}{
		{"HP Écouteur", "HP Écouteur"},
		{"HP_ECOUTEUR", "HP Écouteur"},
		{"accel", "Accéléromètre"},
		{"  Flash ", "Flash"},
	}
	for _, tt := range tests {
		d, ok := c.Lookup(tt.name)
		if !ok || d.Label != tt.wantLabel {
			t.Errorf("Lookup(%q) = %q, %v; want %q", tt.name, d.Label, ok, tt.wantLabel)
		}
	}
	if _, ok := c.Lookup("nope"); ok {
		t.Error("Lookup(nope) found a test")
	}
}

func TestCatalog_ManualTests(t *testing.T) {
	c := DefaultCatalog()
	for _, d := range c.Tests() {
		want := d.WireID == "HP_ECOUTEUR" || d.WireID == "HP_BAS_MEDIA"
		if d.Manual != want {
			t.Errorf("%s Manual = %v, want %v", d.Label, d.Manual, want)
		}
	}
}

func TestNewCatalog_Duplicates(t *testing.T) {
	tests := []struct {
		name string
		defs []TestDefinition
	}{
		{"dup_label", []TestDefinition{{Label: "Flash", WireID: "FLASH"}, {Label: "Flash", WireID: "FLASH2"}}},
		{"dup_wire", []TestDefinition{{Label: "Flash", WireID: "FLASH"}, {Label: "Flash 2", WireID: "FLASH"}}},
		{"empty", []TestDefinition{{Label: "", WireID: "FLASH"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.defs); err == nil {
				t.Error("NewCatalog succeeded, want error")
			}
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Wifi", "WIFI"},
		{"HP Bas (Média)", "HP_BAS_MEDIA"},
		{"Micro Arr.", "MICRO_ARR"},
		{"Accéléromètre", "ACCELEROMETRE"},
		{"Caméra  Av.", "CAMERA_AV"},
		{"  Écran ", "ECRAN"},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleFromWireID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"WIFI", "Wifi"},
		{"BOUTONS_VOL", "Boutons Vol"},
		{"TACTILE", "Tactile"},
	}
	for _, tt := range tests {
		if got := titleFromWireID(tt.in); got != tt.want {
			t.Errorf("titleFromWireID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
