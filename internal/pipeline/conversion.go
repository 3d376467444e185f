package pipeline

// ConversionTable updates the shielded-reward conversion rates at an epoch
// boundary (spec §4.4 step 3: "Conversion-table update for shielded
// rewards"). Open Question §9 resolution: the source's numeric test
// vectors hint at a per-asset reward rate but give no formula, so this is
// a pluggable extension point with a no-op default rather than invented
// policy — FinalizeBlock's epoch housekeeping has a call site without
// this core asserting unverifiable reward math.
type ConversionTable interface {
	// UpdateAtEpoch is called once per epoch boundary, after governance
	// tallying, with the epoch being entered.
	UpdateAtEpoch(epoch uint64) error
}

// NoopConversionTable is the default ConversionTable: shielded-reward
// conversion is out of this core's testable surface (spec.md itself calls
// the formula unspecified by its own source), so it does nothing.
type NoopConversionTable struct{}

func (NoopConversionTable) UpdateAtEpoch(uint64) error { return nil }
