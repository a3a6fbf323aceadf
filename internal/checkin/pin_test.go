package checkin

import "testing"

func TestGeneratePIN(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		pin, err := GeneratePIN()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(pin) != PINLength {
			t.Fatalf("pin %q has length %d, want %d", pin, len(pin), PINLength)
		}
		for _, r := range pin {
			if r < '0' || r > '9' {
				t.Fatalf("pin %q contains non-digit", pin)
			}
		}
		seen[pin] = true
	}
	// 50 draws from a million values colliding down to a handful would
	// mean a broken generator.
	if len(seen) < 40 {
		t.Fatalf("only %d distinct PINs in 50 draws", len(seen))
	}
}
