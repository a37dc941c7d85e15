package plate

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ab-123-cd", want: "AB-I23-CD"},
		{in: "AB 123 CD", want: "ABI23CD"},
		{in: " gh.456;ij ", want: "GH4S6IJ"},
		{in: "0158", want: "OISB"},
		{in: "é-x7!", want: "-X7"},
		{in: "", want: ""},
		{in: "---", want: "---"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"ab-123-cd", "AB123CD", "1234AB56", "  x y z 0 1 5 8 ", "plate: 8-SB-05",
		"àbc-ü99", "\t\n", "ZZ-999-ZZ", "o0O0",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
