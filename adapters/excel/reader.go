package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"varexplorer/domain/variant"
)

// DataReader reads identifier lists from Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*SheetData, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

var rsIDPattern = regexp.MustCompile(`(?i)^rs[0-9]+$`)

// ReadRsIDs returns the identifiers in the rsID column, or the first column
// when no header names one. A first line that is itself an rsID is read as
// data, so headerless lists keep their first entry. Order is kept and repeats
// are dropped.
func (r *DataReader) ReadRsIDs() ([]variant.RsID, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}

	column := DetectIDColumn(data)
	if column == "" {
		return nil, fmt.Errorf("no identifier column found in %s", r.filePath)
	}

	ids := make([]variant.RsID, 0, len(data.Rows)+1)
	if rsIDPattern.MatchString(column) {
		ids = append(ids, variant.RsID(column))
	}
	for _, row := range data.Rows {
		ids = append(ids, variant.ParseRsIDList(row[column])...)
	}
	ids = variant.Dedupe(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("column %q has no identifiers", column)
	}
	return ids, nil
}

// readExcelData reads the first sheet of an Excel workbook
func (r *DataReader) readExcelData() (*SheetData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) == 0 {
		return nil, fmt.Errorf("Excel file has no rows")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*SheetData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into SheetData
func (r *DataReader) processRows(rows [][]string) (*SheetData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &SheetData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// DetectIDColumn finds the identifier column by name, falling back to the
// first column
func DetectIDColumn(data *SheetData) string {
	candidates := []string{"rsid", "rs_id", "id", "variant", "variant_id", "snp"}
	for _, name := range candidates {
		for _, header := range data.Headers {
			if strings.ToLower(header) == name {
				return header
			}
		}
	}
	if len(data.Headers) > 0 {
		return data.Headers[0]
	}
	return ""
}
