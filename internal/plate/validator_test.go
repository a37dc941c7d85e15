package plate

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/plates-tracker/constants"
)

func TestClassify(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		text       string
		wantAccept bool
		wantFormat string
	}{
		{text: "AB-123-CD", wantAccept: true, wantFormat: constants.FormatFRDash},
		{text: "AB123CD", wantAccept: true, wantFormat: constants.FormatFRNoDash},
		{text: "1234AB56", wantAccept: true, wantFormat: constants.FormatLegacy},
		{text: "ABC1234", wantAccept: true, wantFormat: constants.FormatEUGeneric},
		{text: "B1234XY", wantAccept: true, wantFormat: constants.FormatEUGeneric},
		{text: "AB-I23-CD", wantAccept: true, wantFormat: constants.FormatNonStandard},
		{text: "X9-Y9-Z9", wantAccept: true, wantFormat: constants.FormatNonStandard},
		{text: "AB12", wantAccept: false},
		{text: "ABCDEFG", wantAccept: false},
		{text: "1234567", wantAccept: false},
		{text: "ABCDEFGHIJ123", wantAccept: false},
		{text: "ab123cd", wantAccept: false},
		{text: "", wantAccept: false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := v.Classify(tt.text)
			if got.Accepted != tt.wantAccept {
				t.Fatalf("Classify(%q).Accepted = %v, want %v", tt.text, got.Accepted, tt.wantAccept)
			}
			if got.Format != tt.wantFormat {
				t.Fatalf("Classify(%q).Format = %q, want %q", tt.text, got.Format, tt.wantFormat)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// AB123CD also fits EU-generic; FR-nodash is earlier in the registry.
	if got := NewValidator().Classify("AB123CD"); got.Format != constants.FormatFRNoDash || got.Family != constants.FamilyFR {
		t.Fatalf("got %+v", got)
	}
}

func TestClassifySubstitutedTextRejectedOnlyWhenStrict(t *testing.T) {
	text := Normalize("ab-123-cd")
	if text != "AB-I23-CD" {
		t.Fatalf("normalized = %q", text)
	}
	tests := []struct {
		name       string
		strict     bool
		wantAccept bool
		wantFormat string
	}{
		{"lenient keeps it as non-standard", false, true, constants.FormatNonStandard},
		{"strict rejects it", true, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewValidator(WithStrict(tt.strict)).Classify(text)
			if got.Matched {
				t.Fatalf("expected no grammar to match %q, got %q", text, got.Format)
			}
			if got.Accepted != tt.wantAccept || got.Format != tt.wantFormat {
				t.Fatalf("Classify(%q) = %+v, want accepted=%v format=%q", text, got, tt.wantAccept, tt.wantFormat)
			}
		})
	}
}

func TestClassifyAcceptedImpliesPrecondition(t *testing.T) {
	v := NewValidator()
	alphabet := "AB0-9Z"
	var gen func(prefix string, depth int)
	gen = func(prefix string, depth int) {
		if r := v.Classify(prefix); r.Accepted {
			if len(prefix) < 6 || len(prefix) > 12 ||
				!strings.ContainsAny(prefix, "ABZ") || !strings.ContainsAny(prefix, "09") {
				t.Fatalf("accepted %q without precondition", prefix)
			}
		}
		if depth == 0 {
			return
		}
		for _, r := range alphabet {
			gen(prefix+string(r), depth-1)
		}
	}
	gen("", 7)
}

func TestWithGrammarsAppendsAfterBuiltins(t *testing.T) {
	extra, err := ParseGrammars([]byte(`
grammars:
  - label: DE
    family: EU
    pattern: '[A-Z]{1,3}-[A-Z]{1,2}[0-9]{1,4}'
`))
	if err != nil {
		t.Fatal(err)
	}
	v := NewValidator(WithGrammars(extra...))
	if n := len(v.Grammars()); n != 5 {
		t.Fatalf("registry size = %d", n)
	}
	if got := v.Classify("M-AB1234"); got.Format != "DE" || !got.Matched || got.Family != constants.FamilyEU {
		t.Fatalf("got %+v", got)
	}
	if got := v.Classify("AB-123-CD"); got.Format != constants.FormatFRDash {
		t.Fatalf("builtin order changed: %+v", got)
	}
}

func TestParseGrammarsRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing pattern": `{"grammars":[{"label":"X"}]}`,
		"reserved label":  `{"grammars":[{"label":"non-standard","pattern":"A"}]}`,
		"unknown family":  `{"grammars":[{"label":"X","pattern":"A","family":"mars"}]}`,
		"empty list":      `{"grammars":[]}`,
		"bad regexp":      `{"grammars":[{"label":"X","pattern":"(["}]}`,
		"extra field":     `{"grammars":[{"label":"X","pattern":"A","weight":2}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseGrammars([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
