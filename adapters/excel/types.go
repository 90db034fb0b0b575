package excel

// RawRowData represents a row of raw sheet data as string key-value pairs
type RawRowData map[string]string

// SheetData represents one sheet read from a workbook or CSV file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Sheet names used by the export workbook
const (
	AnnotationsSheet = "Annotations"
	VariantsSheet    = "Region Variants"
	SkippedSheet     = "Skipped"
	SummarySheet     = "Clinical Significance"
)
