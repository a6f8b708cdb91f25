// Command generate writes a deterministic sample dataset into testdata/:
// a set of NF-e XMLs (loose and zipped) plus a latin-1 purchases ledger,
// usable for demoing the upload endpoint end to end.
package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const targetCNPJ = "11222333000181"

type supplier struct {
	cnpj, name, uf string
}

var suppliers = []supplier{
	{"99888777000166", "Moveis Gaucho Ltda", "RS"},
	{"55444333000122", "Distribuidora Bahia SA", "BA"},
	{"77666555000144", "Paulista Suprimentos ME", "SP"},
}

var cfops = []string{"2556", "1556", "2551", "5102", "2406"}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	type ledgerLine struct {
		doc    int
		cfop   string
		prod   string
		desc   string
		value  float64
	}
	var ledgerLines []ledgerLine

	var xmls [][]byte
	for i := 1; i <= 12; i++ {
		sup := suppliers[rng.Intn(len(suppliers))]
		cfop := cfops[rng.Intn(len(cfops))]
		vProd := math.Round((100+rng.Float64()*4900)*100) / 100
		prod := fmt.Sprintf("P%03d", i)

		doc := buildNFe(i, sup, prod, cfop, vProd)
		xmls = append(xmls, doc)

		ledgerLines = append(ledgerLines, ledgerLine{
			doc: i, cfop: cfop, prod: prod,
			desc:  fmt.Sprintf("Compra uso e consumo %d", i),
			value: vProd,
		})
	}

	// Loose XMLs.
	for i, doc := range xmls[:4] {
		path := filepath.Join(baseDir, fmt.Sprintf("nota_%03d.xml", i+1))
		mustWrite(path, doc)
	}

	// The rest bundled, one level of nesting included.
	var inner bytes.Buffer
	innerZip := zip.NewWriter(&inner)
	for i, doc := range xmls[8:] {
		f, err := innerZip.Create(fmt.Sprintf("lote_b/nota_%03d.xml", i+9))
		must(err)
		_, err = f.Write(doc)
		must(err)
	}
	must(innerZip.Close())

	var outer bytes.Buffer
	outerZip := zip.NewWriter(&outer)
	for i, doc := range xmls[4:8] {
		f, err := outerZip.Create(fmt.Sprintf("nota_%03d.xml", i+5))
		must(err)
		_, err = f.Write(doc)
		must(err)
	}
	f, err := outerZip.Create("lote_b.zip")
	must(err)
	_, err = f.Write(inner.Bytes())
	must(err)
	must(outerZip.Close())
	mustWrite(filepath.Join(baseDir, "notas.zip"), outer.Bytes())

	// Ledger in the accounting-system export shape: banner rows, then
	// semicolon-separated latin-1 with pt-BR numbers.
	var sb strings.Builder
	sb.WriteString("RELATÓRIO DE ENTRADAS;;;;\n")
	sb.WriteString("Empresa: Dizimeiro Comércio Ltda;;;;\n")
	sb.WriteString("Período: 01/2026;;;;\n")
	sb.WriteString(";;;;\n")
	sb.WriteString("Nota;CFOP;Produto;Descrição;Valor Contábil\n")
	var total float64
	for _, l := range ledgerLines {
		sb.WriteString(fmt.Sprintf("%d;%s;%s;%s;%s\n",
			l.doc, l.cfop, l.prod, l.desc, brlNumber(l.value)))
		total += l.value
	}
	sb.WriteString(fmt.Sprintf(";;;Total Geral;%s\n", brlNumber(total)))

	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(sb.String()))
	must(err)
	mustWrite(filepath.Join(baseDir, "relatorio_entradas.csv"), encoded)

	fmt.Printf("Wrote %d XMLs, notas.zip and relatorio_entradas.csv to %s\n", 4, baseDir)
	fmt.Printf("Target CNPJ for uploads: %s\n", targetCNPJ)
}

func buildNFe(number int, sup supplier, prod, cfop string, vProd float64) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
 <NFe>
  <infNFe Id="NFe%035d" versao="4.00">
   <ide><nNF>%d</nNF></ide>
   <emit>
    <CNPJ>%s</CNPJ>
    <xNome>%s</xNome>
    <enderEmit><UF>%s</UF></enderEmit>
   </emit>
   <dest><CNPJ>%s</CNPJ></dest>
   <det nItem="1">
    <prod>
     <cProd>%s</cProd><xProd>Material de uso e consumo</xProd>
     <CFOP>%s</CFOP><vProd>%.2f</vProd>
    </prod>
    <imposto>
     <ICMS><ICMS00><orig>0</orig><pICMS>12.00</pICMS><vICMS>%.2f</vICMS></ICMS00></ICMS>
    </imposto>
   </det>
  </infNFe>
 </NFe>
</nfeProc>`, number, number, sup.cnpj, sup.name, sup.uf, targetCNPJ, prod, cfop, vProd, vProd*0.12))
}

// brlNumber renders 1234.5 as "1.234,50".
func brlNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	parts := strings.SplitN(s, ".", 2)
	intPart, decPart := parts[0], parts[1]
	var out []string
	for len(intPart) > 3 {
		out = append([]string{intPart[len(intPart)-3:]}, out...)
		intPart = intPart[:len(intPart)-3]
	}
	out = append([]string{intPart}, out...)
	return strings.Join(out, ".") + "," + decPart
}

func findTestdataDir() string {
	candidates := []string{"testdata", filepath.Join("..", "..", "testdata")}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	must(os.MkdirAll("testdata", 0o755))
	return "testdata"
}

func mustWrite(path string, data []byte) {
	must(os.WriteFile(path, data, 0o644))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
