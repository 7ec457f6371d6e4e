package cohort

// MarkerKind identifies one visual marker layer on a participant timeline.
type MarkerKind string

const (
	MarkerVisit              MarkerKind = "visit"
	MarkerFever              MarkerKind = "fever"
	MarkerLAMPNegative       MarkerKind = "lamp_negative"
	MarkerLAMPPositive       MarkerKind = "lamp_positive"
	MarkerMicroscopyNegative MarkerKind = "microscopy_negative"
	MarkerParasitePositive   MarkerKind = "parasite_positive"
	MarkerGametocytes        MarkerKind = "gametocytes"
)

// MarkerRule decides whether a marker layer applies to an observation.
// Rules are evaluated in order; Layer is the draw order, with higher layers
// painted on top of lower ones. A later layer never suppresses an earlier
// one: the gametocyte ring is drawn over the parasite disc, not instead
// of it.
type MarkerRule struct {
	Kind    MarkerKind
	Layer   int
	Applies func(Observation) bool
}

// MarkerRules is the fixed precedence table for timeline markers.
//
// Layer 0 is the plain visit dot present on every row. Test-result layers
// only apply when the underlying measurement exists: LAMP rings require a
// conclusive LAMP call, microscopy rings require a measured density with no
// LAMP call for the same visit (LAMP supersedes microscopy display when both
// are recorded), and the gametocyte ring requires microscopy positivity.
var MarkerRules = []MarkerRule{
	{Kind: MarkerVisit, Layer: 0, Applies: func(Observation) bool { return true }},
	{Kind: MarkerFever, Layer: 1, Applies: func(o Observation) bool { return o.Febrile() }},
	{Kind: MarkerLAMPNegative, Layer: 2, Applies: func(o Observation) bool { return o.LAMP == ResultNegative }},
	{Kind: MarkerLAMPPositive, Layer: 2, Applies: func(o Observation) bool { return o.LAMP == ResultPositive }},
	{Kind: MarkerMicroscopyNegative, Layer: 3, Applies: func(o Observation) bool {
		return o.LAMP == ResultUnknown && o.MicroscopyNegative()
	}},
	{Kind: MarkerParasitePositive, Layer: 4, Applies: func(o Observation) bool {
		return o.LAMP == ResultUnknown && o.MicroscopyPositive()
	}},
	{Kind: MarkerGametocytes, Layer: 5, Applies: func(o Observation) bool {
		return o.LAMP == ResultUnknown && o.MicroscopyPositive() && o.Gametocytes == FlagYes
	}},
}

// MarkersFor returns the marker layers applying to an observation in draw
// order (bottom first).
func MarkersFor(o Observation) []MarkerKind {
	var kinds []MarkerKind
	for _, rule := range MarkerRules {
		if rule.Applies(o) {
			kinds = append(kinds, rule.Kind)
		}
	}
	return kinds
}
