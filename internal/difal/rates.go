// Package difal computes the interstate rate-gap tax (DIFAL) owed on
// qualifying entry line items.
package difal

import "fmt"

// ErrUnknownJurisdiction marks a destination UF missing from the rate table.
// This is caller misconfiguration, never silently defaulted.
var ErrUnknownJurisdiction = fmt.Errorf("unknown destination jurisdiction")

// Tables is the read-only configuration the engine is threaded with. Build
// one with DefaultTables; nothing mutates it during a run.
type Tables struct {
	// InternalRates maps each UF to its internal ICMS rate, in percent.
	InternalRates map[string]float64
	// DoubleBase lists the UFs that require the gross-up method for
	// normal-regime taxpayers.
	DoubleBase map[string]bool
	// SouthSoutheast is the origin-rate class: shipments from these UFs to
	// a UF outside the class use the 7% interstate rate.
	SouthSoutheast map[string]bool
	// EligibleCFOPs are the use/consumption and fixed-asset acquisition
	// movement codes that generate DIFAL under the normal regime.
	EligibleCFOPs map[string]bool
	// ImportedOrigins are the origin classification codes that carry the
	// fixed 4% interstate rate.
	ImportedOrigins map[string]bool
}

// DefaultTables returns the 2025/2026 rate and eligibility tables.
func DefaultTables() Tables {
	return Tables{
		InternalRates: map[string]float64{
			"AC": 19.0, "AL": 19.0, "AM": 20.0, "AP": 18.0, "BA": 20.5,
			"CE": 20.0, "DF": 20.0, "ES": 17.0, "GO": 19.0, "MA": 22.0,
			"MG": 18.0, "MS": 17.0, "MT": 17.0, "PA": 19.0, "PB": 20.0,
			"PE": 20.5, "PI": 21.0, "PR": 19.5, "RJ": 22.0, "RN": 20.0,
			"RO": 19.5, "RR": 20.0, "RS": 17.0, "SC": 17.0, "SE": 19.0,
			"SP": 18.0, "TO": 20.0,
		},
		DoubleBase: set("MG", "PR", "RS", "SC", "SP", "BA", "PE", "GO", "MS", "AL", "SE"),
		SouthSoutheast: set("MG", "PR", "RS", "SC", "SP", "RJ"),
		EligibleCFOPs: set("1556", "2556", "1407", "2407", "1551", "2551", "1406", "2406"),
		ImportedOrigins: set("1", "2", "3", "8"),
	}
}

// InternalRate resolves the destination's internal rate in percent.
func (t Tables) InternalRate(uf string) (float64, error) {
	rate, ok := t.InternalRates[uf]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, uf)
	}
	return rate, nil
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}
