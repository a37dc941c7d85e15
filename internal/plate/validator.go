package plate

import (
	"strings"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// MatchResult is the outcome of Classify. Matched is false for accepted
// non-standard text.
type MatchResult struct {
	Accepted bool
	Matched  bool
	Format   string
	Family   string
}

// Validator classifies normalized text against an ordered grammar registry.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	grammars []Grammar
	strict   bool
}

type Option func(*Validator)

// WithGrammars appends grammars after the built-in ones.
func WithGrammars(g ...Grammar) Option {
	return func(v *Validator) {
		v.grammars = append(v.grammars, g...)
	}
}

// WithStrict rejects text that passes the precondition but matches no grammar.
// Normalized text whose substitutions break every grammar, such as
// "AB-I23-CD", is rejected only in strict mode; the default validator
// accepts it as non-standard.
func WithStrict(strict bool) Option {
	return func(v *Validator) {
		v.strict = strict
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{grammars: BuiltinGrammars()}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Grammars returns the registry in match order.
func (v *Validator) Grammars() []Grammar {
	out := make([]Grammar, len(v.grammars))
	copy(out, v.grammars)
	return out
}

// Classify checks the length/letter/digit precondition, then returns the
// first matching grammar. Text that matches nothing is accepted as
// non-standard unless the validator is strict.
func (v *Validator) Classify(text string) MatchResult {
	if !Plausible(text) {
		return MatchResult{}
	}
	for _, g := range v.grammars {
		if g.Pattern.MatchString(text) {
			return MatchResult{Accepted: true, Matched: true, Format: g.Label, Family: g.Family}
		}
	}
	if v.strict {
		return MatchResult{}
	}
	return MatchResult{Accepted: true, Format: constants.FormatNonStandard, Family: constants.FamilyOther}
}

// Plausible reports whether text has 6 to 12 characters from A-Z, 0-9 and '-'
// with at least one letter and one digit.
func Plausible(text string) bool {
	n := len(text)
	if n < entity.MinPlateLength || n > entity.MaxPlateLength {
		return false
	}
	if strings.IndexFunc(text, outsideAlphabet) >= 0 {
		return false
	}
	return strings.IndexFunc(text, isLetter) >= 0 && strings.IndexFunc(text, isDigit) >= 0
}

func isLetter(r rune) bool        { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool         { return r >= '0' && r <= '9' }
func outsideAlphabet(r rune) bool { return !isLetter(r) && !isDigit(r) && r != '-' }
