package audit

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/mariibrb/dizimeiro/internal/archive"
	"github.com/mariibrb/dizimeiro/internal/difal"
	"github.com/mariibrb/dizimeiro/internal/domain"
	"github.com/mariibrb/dizimeiro/internal/ingestion"
	"github.com/mariibrb/dizimeiro/internal/reconciliation"
	"github.com/mariibrb/dizimeiro/internal/repository"
)

const targetCNPJ = "11222333000181"

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(repository.NewAuditRepo(db), difal.DefaultTables(), zerolog.Nop())
}

func invoiceXML(number, issuerCNPJ, issuerUF, cfop, vProd string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe">
 <NFe><infNFe Id="NFe1" versao="4.00">
  <ide><nNF>` + number + `</nNF></ide>
  <emit><CNPJ>` + issuerCNPJ + `</CNPJ><xNome>Fornecedor</xNome><enderEmit><UF>` + issuerUF + `</UF></enderEmit></emit>
  <dest><CNPJ>` + targetCNPJ + `</CNPJ></dest>
  <det nItem="1">
   <prod><cProd>P001</cProd><xProd>Item</xProd><CFOP>` + cfop + `</CFOP><vProd>` + vProd + `</vProd></prod>
   <imposto><ICMS><ICMS00><orig>0</orig><pICMS>12.00</pICMS></ICMS00></ICMS></imposto>
  </det>
 </infNFe></NFe>
</nfeProc>`)
}

func zipped(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func defaultParams() Params {
	return Params{
		TargetCNPJ:    targetCNPJ,
		DestinationUF: "AP",
		Regime:        domain.RegimeNormal,
		RateSource:    difal.RateSourceOrigin,
		MatchMode:     reconciliation.ModeCFOP,
		LedgerLayout:  ingestion.DefaultLedgerLayout(),
	}
}

func TestRunWithoutLedger(t *testing.T) {
	svc := testService(t)

	uploads := []archive.Blob{
		{Name: "nota_1.xml", Data: invoiceXML("1", "99888777000166", "BA", "2556", "1000.00")},
		{Name: "lote.zip", Data: zipped(t, "nota_2.xml", invoiceXML("2", "99888777000166", "BA", "5102", "500.00"))},
	}

	run, rows, err := svc.Run(defaultParams(), uploads, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, run.DocumentCount)
	assert.Equal(t, 2, run.LineItemCount)
	assert.Equal(t, 0, run.LedgerRowCount)
	assert.Equal(t, 2, run.MatchedCount)
	assert.Equal(t, 60.00, run.TotalDue)

	require.Len(t, rows, 2)
	// Ordered descending by amount.
	assert.Equal(t, 60.00, rows[0].AmountDue)
	assert.Equal(t, domain.LabelSingleBase, rows[0].Label)
	assert.Equal(t, 0.0, rows[1].AmountDue)
	assert.Equal(t, domain.LabelNotTaxable, rows[1].Label)
}

func TestRunWithLedgerInnerJoin(t *testing.T) {
	svc := testService(t)

	uploads := []archive.Blob{
		{Name: "nota_1.xml", Data: invoiceXML("1", "99888777000166", "BA", "2556", "1000.00")},
		{Name: "nota_2.xml", Data: invoiceXML("2", "99888777000166", "BA", "2556", "500.00")},
	}
	// Only document 1 is booked in the ledger.
	ledgerUTF8 := "h;h;h;h;h\nh;h;h;h;h\nh;h;h;h;h\nh;h;h;h;h\nh;h;h;h;h\n1;2556;P001;Cadeira;1.000,00\n"
	ledger, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(ledgerUTF8))
	require.NoError(t, err)

	run, rows, err := svc.Run(defaultParams(), uploads, ledger)
	require.NoError(t, err)

	assert.Equal(t, 1, run.LedgerRowCount)
	assert.Equal(t, 1, run.MatchedCount)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].DocNumber)
	assert.Equal(t, 1000.00, rows[0].LedgerValue)
	assert.Equal(t, 60.00, run.TotalDue)
}

func TestRunIdempotence(t *testing.T) {
	svc := testService(t)
	uploads := []archive.Blob{
		{Name: "a.xml", Data: invoiceXML("1", "99888777000166", "BA", "2556", "1000.00")},
		{Name: "b.xml", Data: invoiceXML("2", "55444333000122", "RS", "2556", "750.00")},
	}

	run1, rows1, err := svc.Run(defaultParams(), uploads, nil)
	require.NoError(t, err)
	run2, rows2, err := svc.Run(defaultParams(), uploads, nil)
	require.NoError(t, err)

	assert.Equal(t, run1.TotalDue, run2.TotalDue)
	require.Equal(t, len(rows1), len(rows2))
	for i := range rows1 {
		a, b := rows1[i], rows2[i]
		a.RunID, b.RunID = "", ""
		assert.Equal(t, a, b)
	}
}

func TestRunAffiliateDocumentsExcluded(t *testing.T) {
	svc := testService(t)
	// Issuer shares the target's registration root.
	uploads := []archive.Blob{
		{Name: "transfer.xml", Data: invoiceXML("1", "11222333000262", "BA", "2556", "1000.00")},
	}

	run, rows, err := svc.Run(defaultParams(), uploads, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.DocumentCount)
	assert.Equal(t, 0, run.LineItemCount)
	assert.Empty(t, rows)
}

func TestRunRejectsBadConfiguration(t *testing.T) {
	svc := testService(t)

	p := defaultParams()
	p.TargetCNPJ = "123"
	_, _, err := svc.Run(p, nil, nil)
	assert.Error(t, err)

	p = defaultParams()
	p.DestinationUF = "ZZ"
	_, _, err = svc.Run(p, nil, nil)
	assert.ErrorIs(t, err, difal.ErrUnknownJurisdiction)
}

func TestRunCorruptUploadContributesNothing(t *testing.T) {
	svc := testService(t)
	uploads := []archive.Blob{
		{Name: "broken.zip", Data: []byte("PK\x03\x04garbage")},
		{Name: "nota.xml", Data: invoiceXML("1", "99888777000166", "BA", "2556", "1000.00")},
	}

	run, _, err := svc.Run(defaultParams(), uploads, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.DocumentCount)
	assert.Equal(t, 60.00, run.TotalDue)
}
