package submission

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Output file names.
const (
	DiscoveryFile  = "discovery.csv"
	ExtractionFile = "extraction.csv"
	WorkbookFile   = "submission.xlsx"
)

type recorder interface {
	Record() []string
}

// WriteCSV writes a semicolon separated table with header.
func WriteCSV[R recorder](w io.Writer, header []string, rows []R) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "submission: write header")
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return eris.Wrap(err, "submission: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "submission: flush csv")
}

func writeCSVFile[R recorder](path string, header []string, rows []R) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "submission: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := WriteCSV(f, header, rows); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "submission: close %s", path)
}

// WriteFiles writes discovery.csv and extraction.csv into dir, and the
// submission.xlsx workbook too when withXLSX is set.
func WriteFiles(dir string, discovery []DiscoveryRow, extraction []ExtractionRow, withXLSX bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "submission: create %s", dir)
	}
	if err := writeCSVFile(filepath.Join(dir, DiscoveryFile), DiscoveryColumns, discovery); err != nil {
		return err
	}
	if err := writeCSVFile(filepath.Join(dir, ExtractionFile), ExtractionColumns, extraction); err != nil {
		return err
	}
	if withXLSX {
		return WriteXLSX(filepath.Join(dir, WorkbookFile), discovery, extraction)
	}
	return nil
}

// WriteXLSX writes both tables into one workbook, one sheet each. Numbers
// are stored as numeric cells.
func WriteXLSX(path string, discovery []DiscoveryRow, extraction []ExtractionRow) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("discovery")
	if err != nil {
		return eris.Wrap(err, "submission: add discovery sheet")
	}
	addHeader(sheet, DiscoveryColumns)
	for _, r := range discovery {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.ID)
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.Type)
		row.AddCell().SetString(r.Src)
		setYear(row.AddCell(), r.RefYear)
	}

	sheet, err = f.AddSheet("extraction")
	if err != nil {
		return eris.Wrap(err, "submission: add extraction sheet")
	}
	addHeader(sheet, ExtractionColumns)
	for _, r := range extraction {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.ID)
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(string(r.Variable))
		row.AddCell().SetString(r.Src)
		cell := row.AddCell()
		switch v := r.Value.(type) {
		case int64:
			cell.SetInt64(v)
		case int:
			cell.SetInt(v)
		case float64:
			cell.SetFloat(v)
		default:
			cell.SetString(FormatValue(v))
		}
		row.AddCell().SetString(r.Currency)
		setYear(row.AddCell(), r.RefYear)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "submission: save %s", path)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, columns []string) {
	row := sheet.AddRow()
	for _, c := range columns {
		row.AddCell().SetString(c)
	}
}

func setYear(cell *xlsx.Cell, y *int) {
	if y == nil {
		cell.SetString("")
		return
	}
	cell.SetInt(*y)
}
