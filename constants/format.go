package constants

// Plate grammar labels, in registry order.
const (
	FormatFRDash      = "FR-dash"
	FormatFRNoDash    = "FR-nodash"
	FormatLegacy      = "legacy"
	FormatEUGeneric   = "EU-generic"
	FormatNonStandard = "non-standard"
)

// Format families group labels for reporting.
const (
	FamilyFR     = "FR"
	FamilyEU     = "EU"
	FamilyLegacy = "legacy"
	FamilyOther  = "other"
)

var formatFamilies = map[string]string{
	FormatFRDash:    FamilyFR,
	FormatFRNoDash:  FamilyFR,
	FormatLegacy:    FamilyLegacy,
	FormatEUGeneric: FamilyEU,
}

// FormatFamily maps a built-in grammar label to its family; unknown labels map to FamilyOther.
func FormatFamily(label string) string {
	if f, ok := formatFamilies[label]; ok {
		return f
	}
	return FamilyOther
}
