package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/example/studybot/pkg/models"
)

// ErrUnsupportedFormat is returned for files that are neither spreadsheets nor CSV
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

var validate = validator.New()

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath       string // Path to the Excel or CSV file
	SheetName      string // Sheet to import, the first sheet when empty
	StartRow       int    // The row to start importing from (1-based index)
	IDColumn       string // Column with the item ID, the row number is used when empty
	TermColumn     string // Column with the prompt
	MeaningColumn  string // Column with the expected answer
	ReadingColumn  string // Column with the pronunciation or reading
	HintColumn     string // Column with a hint
	ExampleColumn  string // Column with an example sentence
	CategoryColumn string // Column with the category
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		StartRow:       2, // skip header
		IDColumn:       "A",
		TermColumn:     "B",
		MeaningColumn:  "C",
		ReadingColumn:  "D",
		HintColumn:     "E",
		ExampleColumn:  "F",
		CategoryColumn: "G",
	}
}

// ImportResult holds the items read from one catalog file
type ImportResult struct {
	Items          []models.VocabularyItem
	TotalProcessed int
	Skipped        int
	Errors         []string
}

// LoadCatalog reads vocabulary items from an Excel or CSV file.
// Invalid and duplicate rows are skipped and reported in ImportResult.Errors.
func LoadCatalog(config ImportConfig) (*ImportResult, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(config.FilePath)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcel(config)
	case ".csv":
		rows, err = readCSV(config.FilePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, config.FilePath)
	}
	if err != nil {
		return nil, err
	}

	startRow := config.StartRow
	if startRow < 1 {
		startRow = 1
	}

	result := &ImportResult{Errors: make([]string, 0)}
	seen := make(map[string]bool)
	currentCategory := ""

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < startRow || isBlankRow(row) {
			continue
		}

		// A row with a single filled cell is a section heading, e.g. "Verbs,,"
		if heading, ok := sectionHeading(row); ok {
			currentCategory = heading
			continue
		}

		result.TotalProcessed++
		item := parseRow(row, config, rowNum, currentCategory)

		if err := validate.Struct(item); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, describeValidation(err)))
			continue
		}
		if seen[item.ID] {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: duplicate id %q", rowNum, item.ID))
			continue
		}
		seen[item.ID] = true
		result.Items = append(result.Items, item)
	}

	return result, nil
}

// LoadDir reads every catalog file in dir. The file name without extension is the subject.
// Files in other formats are ignored.
func LoadDir(dir string, base ImportConfig) (map[string]*ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		// skip lock files left by spreadsheet editors
		if e.IsDir() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*ImportResult)
	for _, name := range names {
		cfg := base
		cfg.FilePath = filepath.Join(dir, name)

		result, err := LoadCatalog(cfg)
		if errors.Is(err, ErrUnsupportedFormat) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}

		subject := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, ok := out[subject]; ok {
			return nil, fmt.Errorf("subject %q is defined by more than one file (%d items already loaded)", subject, len(prev.Items))
		}
		out[subject] = result
	}
	return out, nil
}

// readExcel returns the rows of the configured sheet
func readExcel(config ImportConfig) ([][]string, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", config.FilePath)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

// readCSV returns every record of a CSV file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(row []string, config ImportConfig, rowNum int, currentCategory string) models.VocabularyItem {
	item := models.VocabularyItem{
		ID:       cell(row, config.IDColumn),
		Term:     cell(row, config.TermColumn),
		Meaning:  cell(row, config.MeaningColumn),
		Reading:  cell(row, config.ReadingColumn),
		Hint:     cell(row, config.HintColumn),
		Example:  cell(row, config.ExampleColumn),
		Category: cell(row, config.CategoryColumn),
	}
	if item.ID == "" {
		item.ID = strconv.Itoa(rowNum)
	}
	if item.Category == "" {
		item.Category = currentCategory
	}
	return item
}

// cell returns the trimmed value of column in row, or "" if the column is unset or out of range
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(strings.TrimPrefix(row[idx], "\ufeff"))
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sectionHeading(row []string) (string, bool) {
	heading := ""
	filled := 0
	for _, v := range row {
		if v = strings.TrimSpace(v); v != "" {
			filled++
			heading = v
		}
	}
	if filled != 1 {
		return "", false
	}
	return strings.Trim(heading, "\""), true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "missing " + strings.Join(fields, ", ")
}

// columnToIndex converts an Excel column letter to a zero-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(strings.TrimSpace(column))
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
