package cohort

import (
	"fmt"
	"math"
	"strings"
)

// Flag is a yes/no field that may also be absent. The zero value is the
// absent state so unjoined rows naturally carry "no data" rather than "no".
type Flag int8

const (
	FlagUnknown Flag = iota // no data recorded
	FlagNo
	FlagYes
)

// ParseFlag maps the source encoding ("Yes"/"No", blank for missing) onto a
// Flag. Unrecognized text is an input error, not a silent unknown.
func ParseFlag(s string) (Flag, error) {
	switch strings.TrimSpace(s) {
	case "":
		return FlagUnknown, nil
	case "Yes":
		return FlagYes, nil
	case "No":
		return FlagNo, nil
	default:
		return FlagUnknown, fmt.Errorf("invalid yes/no value %q", s)
	}
}

func (f Flag) String() string {
	switch f {
	case FlagYes:
		return "Yes"
	case FlagNo:
		return "No"
	default:
		return ""
	}
}

// TestResult is the outcome of a qualitative lab test. It distinguishes a
// test that was never done (Unknown) from one attempted without a readable
// outcome ("No result"), because the renderer treats the two differently.
type TestResult int8

const (
	ResultUnknown TestResult = iota // sample absent or field blank
	ResultNoResult
	ResultNegative
	ResultPositive
)

// ParseTestResult maps the source encoding onto a TestResult.
func ParseTestResult(s string) (TestResult, error) {
	switch strings.TrimSpace(s) {
	case "":
		return ResultUnknown, nil
	case "No result":
		return ResultNoResult, nil
	case "Negative":
		return ResultNegative, nil
	case "Positive":
		return ResultPositive, nil
	default:
		return ResultUnknown, fmt.Errorf("invalid test result %q", s)
	}
}

func (r TestResult) String() string {
	switch r {
	case ResultNoResult:
		return "No result"
	case ResultNegative:
		return "Negative"
	case ResultPositive:
		return "Positive"
	default:
		return ""
	}
}

// Conclusive reports whether the test produced a positive or negative call.
func (r TestResult) Conclusive() bool {
	return r == ResultNegative || r == ResultPositive
}

// DensityBucket classifies a parasite density into log10 decades for display
// and summary statistics.
type DensityBucket string

const (
	BucketNoData   DensityBucket = ""
	BucketNegative DensityBucket = "negative"
	Bucket1to9     DensityBucket = "1-9"
	Bucket10to99   DensityBucket = "10-99"
	Bucket100to999 DensityBucket = "100-999"
	Bucket1Kto9K   DensityBucket = "1K-9K"
	Bucket10Kto99K DensityBucket = "10K-99K"
	Bucket100KPlus DensityBucket = ">=100K"
)

// DensityBucket returns the log10 decade bucket for the observation's
// parasite density, or BucketNoData when no density was measured.
func (o Observation) DensityBucket() DensityBucket {
	if o.ParasiteDensity == nil {
		return BucketNoData
	}
	d := *o.ParasiteDensity
	switch {
	case d <= 0:
		return BucketNegative
	case d < 10:
		return Bucket1to9
	case d < 100:
		return Bucket10to99
	case d < 1000:
		return Bucket100to999
	case d < 10000:
		return Bucket1Kto9K
	case d < 100000:
		return Bucket10Kto99K
	default:
		return Bucket100KPlus
	}
}

// FormatDensity renders a density for hover text with K/M abbreviation,
// matching the viewer's labelling (e.g. "2.5K", "1.1M", "640").
func FormatDensity(d float64) string {
	switch {
	case d >= 1e6:
		return fmt.Sprintf("%.1fM", d/1e6)
	case d >= 1e3:
		return fmt.Sprintf("%.1fK", d/1e3)
	default:
		return fmt.Sprintf("%d", int64(math.Round(d)))
	}
}
