package internal

import "testing"

func TestFastHash(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "token", input: "q83vEjRWeJCrze8SNFZ4kKvN7xI0VniQq83vEjRWeJA="},
		{name: "unicode", input: "café"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			first := FastHash(tt.input)
			if first == "" {
				t.Fatal("FastHash returned an empty string")
			}

			if second := FastHash(tt.input); first != second {
				t.Errorf("FastHash is not stable: %q != %q", first, second)
			}

			if fp := Fingerprint([]byte(tt.input)); fp != first {
				t.Errorf("Fingerprint(%q) = %q, wanted it to match FastHash %q", tt.input, fp, first)
			}
		})
	}
}

func TestFingerprintDistinguishes(t *testing.T) {
	a := Fingerprint([]byte{0x01, 0x02, 0x03})
	b := Fingerprint([]byte{0x01, 0x02, 0x04})

	if a == b {
		t.Errorf("fingerprints of different inputs collided: %s", a)
	}
}
