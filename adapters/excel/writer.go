package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"varexplorer/domain/variant"
	"varexplorer/internal/analysis"
)

// Workbook is the content of an analysis export
type Workbook struct {
	Region      *variant.Region
	Variants    []variant.Variant
	Annotations []variant.Annotation
	Populations []variant.Population
	Skipped     []variant.Skipped
	Counts      []analysis.CategoryCount
}

// Write renders the workbook as xlsx into w
func (wb *Workbook) Write(w io.Writer) error {
	f, err := wb.build()
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveAs writes the workbook to path
func (wb *Workbook) SaveAs(path string) error {
	f, err := wb.build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (wb *Workbook) build() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", AnnotationsSheet); err != nil {
		f.Close()
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	pops := variant.SortedPopulations(wb.Populations)
	if len(pops) == 0 {
		pops = variant.AllPopulations
	}

	header := []interface{}{"rsID", "Gene", "Most Severe Consequence", "Clinical Significance"}
	for _, p := range pops {
		header = append(header, fmt.Sprintf("%s Frequency", p))
	}
	rows := make([][]interface{}, 0, len(wb.Annotations))
	for _, ann := range wb.Annotations {
		row := []interface{}{string(ann.RsID), ann.GeneSymbol, ann.MostSevereConsequence, ann.ClinicalSignificanceText()}
		for _, p := range pops {
			if freq, ok := ann.Frequency(p); ok {
				row = append(row, freq)
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	if err := writeSheet(f, AnnotationsSheet, header, rows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	if len(wb.Variants) > 0 {
		rows := make([][]interface{}, 0, len(wb.Variants))
		for _, v := range wb.Variants {
			rows = append(rows, []interface{}{string(v.RsID), v.VariantType, v.Start, v.End, v.Consequence})
		}
		header := []interface{}{"rsID", "Variant Type", "Start", "End", "Consequence"}
		if err := addSheet(f, VariantsSheet, header, rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
		if wb.Region != nil {
			if err := f.SetCellValue(VariantsSheet, "G1", "Region"); err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(VariantsSheet, "H1", wb.Region.Label()); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	if len(wb.Counts) > 0 {
		rows := make([][]interface{}, 0, len(wb.Counts))
		for _, c := range wb.Counts {
			rows = append(rows, []interface{}{c.Category, c.Count})
		}
		if err := addSheet(f, SummarySheet, []interface{}{"Clinical Significance", "Count"}, rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	if len(wb.Skipped) > 0 {
		rows := make([][]interface{}, 0, len(wb.Skipped))
		for _, s := range wb.Skipped {
			rows = append(rows, []interface{}{string(s.RsID), s.Reason})
		}
		if err := addSheet(f, SkippedSheet, []interface{}{"rsID", "Reason"}, rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func addSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeSheet(f, sheet, header, rows, headerStyle)
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}
