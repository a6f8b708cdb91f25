package difal

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mariibrb/dizimeiro/internal/domain"
)

// RateSource selects how the interstate rate is derived. The source history
// of this calculation is split between the two; the choice is explicit
// configuration, never inferred.
type RateSource string

const (
	// RateSourceOrigin derives the rate from the origin classification and
	// the jurisdiction class tables.
	RateSourceOrigin RateSource = "origin"
	// RateSourceDeclared uses the rate declared on the invoice itself.
	RateSourceDeclared RateSource = "declared"
)

func ParseRateSource(s string) (RateSource, error) {
	switch s {
	case "", string(RateSourceOrigin):
		return RateSourceOrigin, nil
	case string(RateSourceDeclared):
		return RateSourceDeclared, nil
	}
	return "", fmt.Errorf("unknown rate source: %q", s)
}

// substitutionEpsilon: a vICMSST above this means the issuer already
// collected the differential upfront.
const substitutionEpsilon = 0.1

// Engine evaluates the DIFAL decision list for one taxpayer configuration.
// It is safe for reuse across rows; nothing in it mutates after New.
type Engine struct {
	tables       Tables
	regime       domain.TaxRegime
	destUF       string
	rateSource   RateSource
	internalRate decimal.Decimal // fraction, e.g. 0.18
	log          zerolog.Logger
}

// New validates the taxpayer configuration and builds an engine. An unknown
// destination UF is a configuration error and is surfaced here, before any
// row is computed.
func New(tables Tables, regime domain.TaxRegime, destUF string, rateSource RateSource, log zerolog.Logger) (*Engine, error) {
	pct, err := tables.InternalRate(destUF)
	if err != nil {
		return nil, err
	}
	switch regime {
	case domain.RegimeNormal, domain.RegimeSimples:
	default:
		return nil, fmt.Errorf("unknown tax regime: %q", regime)
	}

	return &Engine{
		tables:       tables,
		regime:       regime,
		destUF:       destUF,
		rateSource:   rateSource,
		internalRate: decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)),
		log:          log,
	}, nil
}

// Compute walks the ordered decision list for one matched record and returns
// the amount owed with the label of the branch that fired. A failure inside
// the computation resolves to ("computation error", 0.0) for that row alone.
func (e *Engine) Compute(m domain.MatchedRecord) (res domain.TaxResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().
				Int("doc_number", m.Item.DocNumber).
				Str("cfop", m.Item.CFOP).
				Interface("cause", r).
				Msg("row computation failed")
			res = domain.TaxResult{Amount: 0, Label: domain.LabelComputationError}
		}
	}()

	// 1. Substitution tax already collected by the issuer.
	if m.Item.Substitution > substitutionEpsilon {
		return domain.TaxResult{Amount: 0, Label: domain.LabelWithheldAtSource}
	}

	// 2. No interstate differential inside one jurisdiction.
	if m.Item.IssuerUF == e.destUF {
		return domain.TaxResult{Amount: 0, Label: domain.LabelIntraJurisdiction}
	}

	// 3. Interstate rate.
	interstate := e.interstateRate(m.Item)

	base := decimal.NewFromFloat(m.Item.IntegralBase)

	// 4. Simplified regime: single base, no movement-code filter.
	if e.regime == domain.RegimeSimples {
		return domain.TaxResult{
			Amount: finalize(base.Mul(e.internalRate.Sub(interstate))),
			Label:  domain.LabelSimplified,
		}
	}

	// 5. Normal regime: only use/consumption and fixed-asset acquisitions.
	if !e.tables.EligibleCFOPs[m.ApplicableCFOP()] {
		return domain.TaxResult{Amount: 0, Label: domain.LabelNotTaxable}
	}

	if e.tables.DoubleBase[e.destUF] {
		// Gross-up: back out the origin tax, re-derive the full base at the
		// destination rate.
		sourceTax := base.Mul(interstate)
		grossed := base.Sub(sourceTax).Div(decimal.NewFromInt(1).Sub(e.internalRate))
		return domain.TaxResult{
			Amount: finalize(grossed.Mul(e.internalRate).Sub(sourceTax)),
			Label:  domain.LabelDoubleBase,
		}
	}

	return domain.TaxResult{
		Amount: finalize(base.Mul(e.internalRate.Sub(interstate))),
		Label:  domain.LabelSingleBase,
	}
}

// interstateRate returns the applicable interstate rate as a fraction.
func (e *Engine) interstateRate(it domain.LineItem) decimal.Decimal {
	if e.rateSource == RateSourceDeclared {
		return decimal.NewFromFloat(it.DeclaredRate).Div(decimal.NewFromInt(100))
	}

	pct := 12.0
	switch {
	case e.tables.ImportedOrigins[it.OriginCode]:
		pct = 4.0
	case e.tables.SouthSoutheast[it.IssuerUF] && !e.tables.SouthSoutheast[e.destUF]:
		pct = 7.0
	}
	return decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))
}

// InterstateRatePercent exposes the rate the engine would apply to an item,
// for reporting.
func (e *Engine) InterstateRatePercent(it domain.LineItem) float64 {
	pct, _ := e.interstateRate(it).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}

// DestinationUF returns the configured destination jurisdiction.
func (e *Engine) DestinationUF() string { return e.destUF }

// finalize floors a computed amount at zero and rounds to 2 decimals.
func finalize(amount decimal.Decimal) float64 {
	if amount.IsNegative() {
		return 0
	}
	v, _ := amount.Round(2).Float64()
	return v
}
