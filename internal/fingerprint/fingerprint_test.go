package fingerprint

import "testing"

func TestIdentityDeterministic(t *testing.T) {
	a := Identity("greenhouse", "acme", "12345")
	b := Identity("greenhouse", "acme", "12345")
	if a != b {
		t.Errorf("Identity not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Identity length = %d, want 64 hex chars", len(a))
	}
}

func TestIdentityCaseInsensitiveSource(t *testing.T) {
	a := Identity("Greenhouse", " Acme ", "12345")
	b := Identity("greenhouse", "acme", "12345")
	if a != b {
		t.Error("expected identity to ignore source casing and padding")
	}
}

func TestIdentityDistinctTriples(t *testing.T) {
	triples := [][3]string{
		{"greenhouse", "acme", "123"},
		{"lever", "acme", "123"},
		{"greenhouse", "other", "123"},
		{"greenhouse", "acme", "124"},
		// Boundary-shifting variants must not collide either.
		{"greenhouse", "ac", "me123"},
		{"greenhouse", "acme1", "23"},
	}
	seen := make(map[string][3]string, len(triples))
	for _, tr := range triples {
		key := Identity(tr[0], tr[1], tr[2])
		if prev, ok := seen[key]; ok {
			t.Errorf("collision: %v and %v both hash to %s", prev, tr, key)
		}
		seen[key] = tr
	}
}

func TestIdentityExternalIDCasePreserved(t *testing.T) {
	a := Identity("lever", "acme", "abc-DEF")
	b := Identity("lever", "acme", "abc-def")
	if a == b {
		t.Error("external IDs are case-sensitive and must hash differently")
	}
}

func TestFingerprintStableUnderFormatting(t *testing.T) {
	a := Fingerprint("Backend  Engineer", "We use\nGo daily.", "Remote")
	b := Fingerprint("backend engineer", "we use go daily.", "  remote  ")
	if a != b {
		t.Error("whitespace/casing-only differences must not change the fingerprint")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	base := Fingerprint("Backend Engineer", "We use Go daily.", "Remote")
	tests := []struct {
		name                       string
		title, description, locale string
	}{
		{"title changed", "Staff Engineer", "We use Go daily.", "Remote"},
		{"description changed", "Backend Engineer", "We use Rust daily.", "Remote"},
		{"location changed", "Backend Engineer", "We use Go daily.", "Berlin"},
		{"location dropped", "Backend Engineer", "We use Go daily.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.title, tt.description, tt.locale); got == base {
				t.Error("content change did not change the fingerprint")
			}
		})
	}
}

func TestFingerprintEmptyLocationEqualsMissing(t *testing.T) {
	a := Fingerprint("T", "D", "")
	b := Fingerprint("T", "D", "   ")
	if a != b {
		t.Error("empty and whitespace-only locations must hash identically")
	}
}

func TestFieldBoundariesNotAmbiguous(t *testing.T) {
	// Content moving across the title/description boundary is a change.
	a := Fingerprint("Backend Engineer", "Remote role", "")
	b := Fingerprint("Backend", "Engineer Remote role", "")
	if a == b {
		t.Error("field boundaries must participate in the fingerprint")
	}
}
