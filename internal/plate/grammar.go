package plate

import (
	"regexp"

	"github.com/joseph-ayodele/plates-tracker/constants"
)

// Grammar is one entry of the ordered plate registry.
type Grammar struct {
	Label   string
	Family  string
	Pattern *regexp.Regexp
}

// BuiltinGrammars returns the default registry, in match order.
func BuiltinGrammars() []Grammar {
	return []Grammar{
		{Label: constants.FormatFRDash, Family: constants.FamilyFR, Pattern: regexp.MustCompile(`^[A-Z]{2}-[0-9]{3}-[A-Z]{2}$`)},
		{Label: constants.FormatFRNoDash, Family: constants.FamilyFR, Pattern: regexp.MustCompile(`^[A-Z]{2}[0-9]{3}[A-Z]{2}$`)},
		{Label: constants.FormatLegacy, Family: constants.FamilyLegacy, Pattern: regexp.MustCompile(`^[0-9]{1,4}[A-Z]{1,3}[0-9]{2}$`)},
		{Label: constants.FormatEUGeneric, Family: constants.FamilyEU, Pattern: regexp.MustCompile(`^[A-Z]{1,3}[0-9]{1,4}[A-Z]{0,2}$`)},
	}
}
