// Package schema defines the canonical observation table: column names,
// schema versions, the tagged-optional cell type, and the normalizer that
// upgrades tables of any vintage to the active version.
package schema

// Canonical column names. These double as CSV headers, so renaming one is a
// breaking change for every previously exported file.
const (
	ColSeq         = "No"
	ColRecordedAt  = "RecordedAt"
	ColFlow        = "Flow"
	ColRPM         = "RPM"
	ColDeltaP      = "DeltaP"
	ColHb          = "Hb"
	ColGlucoseMmol = "GlucoseMmol"
	ColGlucoseMgdl = "GlucoseMgdl"
	ColR           = "R"
	ColRPerHb      = "RperHb"
	ColRPMPerFlow  = "RPMperFlow"
)

// CoreColumns are the columns a restored CSV must have at least one of.
// A file with none of these is not an export of this tool in any version.
var CoreColumns = []string{ColRecordedAt, ColFlow, ColRPM, ColDeltaP}

// Version describes one revision of the canonical column set. The table
// schema evolved over time; instead of one code path per revision, every
// revision is declared here and the normalizer upgrades older tables in
// place by adding the columns they lack.
type Version struct {
	Name    string
	Columns []string

	// RequireHb makes hemoglobin a hard validation requirement on data
	// entry. Older revisions recorded Hb opportunistically.
	RequireHb bool
}

var (
	// V1 is the original layout: circuit numbers only, no hemoglobin.
	V1 = Version{
		Name: "v1",
		Columns: []string{
			ColSeq, ColRecordedAt, ColFlow, ColRPM, ColDeltaP,
			ColR, ColRPMPerFlow,
		},
	}

	// V2 added hemoglobin and the Hb-normalized resistance proxy.
	V2 = Version{
		Name: "v2",
		Columns: []string{
			ColSeq, ColRecordedAt, ColFlow, ColRPM, ColDeltaP, ColHb,
			ColR, ColRPerHb, ColRPMPerFlow,
		},
		RequireHb: true,
	}

	// V3 added glucose in mmol/L with a derived mg/dL conversion.
	V3 = Version{
		Name: "v3",
		Columns: []string{
			ColSeq, ColRecordedAt, ColFlow, ColRPM, ColDeltaP, ColHb,
			ColGlucoseMmol, ColGlucoseMgdl,
			ColR, ColRPerHb, ColRPMPerFlow,
		},
		RequireHb: true,
	}

	// Current is the version new sessions use.
	Current = V3
)

// ByName resolves a declared version from its name. Unknown names fall back
// to Current.
func ByName(name string) Version {
	switch name {
	case V1.Name:
		return V1
	case V2.Name:
		return V2
	case V3.Name:
		return V3
	default:
		return Current
	}
}

// Has reports whether the version carries the given column.
func (v Version) Has(col string) bool {
	for _, c := range v.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// NumericColumns returns the canonical columns that hold numeric cells,
// in canonical order. Every column except the timestamp is numeric.
func (v Version) NumericColumns() []string {
	cols := make([]string, 0, len(v.Columns)-1)
	for _, c := range v.Columns {
		if c != ColRecordedAt {
			cols = append(cols, c)
		}
	}
	return cols
}
