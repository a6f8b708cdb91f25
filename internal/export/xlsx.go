// Package export renders an audit run as a spreadsheet workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mariibrb/dizimeiro/internal/domain"
)

const sheetName = "Auditoria"

var header = []string{
	"Nota", "Fornecedor", "CNPJ Emitente", "UF", "CFOP", "Produto",
	"Descrição", "Base Integral", "Valor Contábil", "Alíquota Inter (%)",
	"ST na Nota", "DIFAL a Recolher", "Regra", "Multiplicidade", "Match",
}

// Workbook builds an XLSX file with the run's full result set (zero-amount
// rows included) and the total on the last line.
func Workbook(run *domain.AuditRun, rows []domain.ResultRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		values := []any{
			row.DocNumber, row.IssuerName, row.IssuerCNPJ, row.IssuerUF,
			row.CFOP, row.ProductCode, row.ProductDescription,
			row.IntegralBase, row.LedgerValue, row.InterstateRate,
			row.Substitution, row.AmountDue, string(row.Label),
			row.Multiplicity, row.MatchIndex,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	totalRow := len(rows) + 2
	labelCell, _ := excelize.CoordinatesToCellName(11, totalRow)
	totalCell, _ := excelize.CoordinatesToCellName(12, totalRow)
	if err := f.SetCellValue(sheetName, labelCell, "Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, totalCell, run.TotalDue); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the download name for a run's workbook.
func Filename(run *domain.AuditRun) string {
	return fmt.Sprintf("auditoria_difal_%s.xlsx", run.ID)
}
