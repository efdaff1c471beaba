// Package export appends extracted records to a two-sheet workbook: the
// primary "ALL" sheet with one row per record and a "Documents" sheet
// with one attachment row per lot key, cross-linked from the primary
// documents column.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"bankrot/harvester/internal/lot"
	"bankrot/harvester/internal/metrics"
)

// Sheet names are part of the output contract.
const (
	MainSheet = "ALL"
	DocsSheet = "Documents"
)

// docsSheetHeader labels the Documents sheet key column; attachments
// spread to the right of it.
var docsSheetHeader = []string{"Номер аукциона / лота", "Документы"}

// columnWidths is cosmetic presentation for the primary sheet.
var columnWidths = map[string]float64{
	"Номер аукциона / лота":                  25,
	"Адрес объекта":                          65,
	"Начальная цена":                         25,
	"Шаг аукциона":                           25,
	"Размер задатка":                         25,
	"Дата и время начала / окончания торгов": 45,
	"Документы":                              18,
	"Статус аукциона":                        25,
	"Информация о должнике":                  65,
	"Описание объекта":                       100,
}

// Sink appends records to a workbook on disk. It is safe to invoke
// repeatedly against the same destination: existing sheets, headers and
// Documents rows are detected and reused, never recreated.
type Sink struct {
	path   string
	logger *zap.Logger
}

// NewSink creates a Sink writing to path.
func NewSink(path string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{path: path, logger: logger}
}

// Append writes records to both sheets and returns the number of primary
// rows added. Records sharing a lot key reuse one Documents row.
func (s *Sink) Append(records []*lot.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	f, err := s.openWorkbook()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	headerToCol, nextMainRow, err := mainHeaderMap(f)
	if err != nil {
		return 0, err
	}
	docKeys, nextDocsRow, err := existingDocKeys(f)
	if err != nil {
		return 0, err
	}

	hyperlink, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "1265BE", Underline: "single"},
	})
	if err != nil {
		return 0, fmt.Errorf("create hyperlink style: %w", err)
	}

	appended := 0
	for _, r := range records {
		row := r.Row()
		for i, col := range lot.Columns {
			cell, err := excelize.CoordinatesToCellName(headerToCol[col], nextMainRow)
			if err != nil {
				return appended, fmt.Errorf("main cell name: %w", err)
			}
			if err := f.SetCellValue(MainSheet, cell, row[i]); err != nil {
				return appended, fmt.Errorf("write main cell: %w", err)
			}
		}

		if err := s.writeDocumentsRef(f, r, headerToCol, nextMainRow, docKeys, &nextDocsRow, hyperlink); err != nil {
			return appended, err
		}

		nextMainRow++
		appended++
	}

	if err := applyPresentation(f); err != nil {
		return appended, err
	}
	if err := f.SaveAs(s.path); err != nil {
		return appended, fmt.Errorf("save workbook: %w", err)
	}

	metrics.ObserveRowsAppended(appended)
	s.logger.Info("workbook updated",
		zap.String("path", s.path),
		zap.Int("rows_appended", appended),
	)
	return appended, nil
}

// writeDocumentsRef fills the documents cell of one primary row: either
// the zero marker or a count-labelled link into the Documents sheet,
// creating that lot's Documents row on first encounter.
func (s *Sink) writeDocumentsRef(
	f *excelize.File,
	r *lot.Record,
	headerToCol map[string]int,
	mainRow int,
	docKeys map[string]int,
	nextDocsRow *int,
	hyperlink int,
) error {
	docsCell, err := excelize.CoordinatesToCellName(headerToCol[lot.DocumentsColumn], mainRow)
	if err != nil {
		return fmt.Errorf("documents cell name: %w", err)
	}

	docs := presentableDocs(r.Documents)
	key := strings.TrimSpace(r.Key())
	if key == "" || len(docs) == 0 {
		if err := f.SetCellValue(MainSheet, docsCell, "Документы (0)"); err != nil {
			return fmt.Errorf("write zero documents marker: %w", err)
		}
		return nil
	}

	docsRow, exists := docKeys[key]
	if !exists {
		docsRow = *nextDocsRow
		if err := appendDocumentsRow(f, docsRow, key, docs, hyperlink); err != nil {
			return err
		}
		docKeys[key] = docsRow
		*nextDocsRow++
	}

	if err := f.SetCellValue(MainSheet, docsCell, fmt.Sprintf("Документы (%d)", len(docs))); err != nil {
		return fmt.Errorf("write documents marker: %w", err)
	}
	link := fmt.Sprintf("%s!A%d", DocsSheet, docsRow)
	if err := f.SetCellHyperLink(MainSheet, docsCell, link, "Location"); err != nil {
		return fmt.Errorf("link documents cell: %w", err)
	}
	if err := f.SetCellStyle(MainSheet, docsCell, docsCell, hyperlink); err != nil {
		return fmt.Errorf("style documents cell: %w", err)
	}
	return nil
}

// appendDocumentsRow writes one wide row: the key in column A and the
// attachments as linked name cells from column B on.
func appendDocumentsRow(f *excelize.File, row int, key string, docs []lot.Attachment, hyperlink int) error {
	keyCell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("documents key cell name: %w", err)
	}
	if err := f.SetCellValue(DocsSheet, keyCell, key); err != nil {
		return fmt.Errorf("write documents key: %w", err)
	}

	for i, d := range docs {
		cell, err := excelize.CoordinatesToCellName(i+2, row)
		if err != nil {
			return fmt.Errorf("documents cell name: %w", err)
		}
		if err := f.SetCellValue(DocsSheet, cell, d.Name); err != nil {
			return fmt.Errorf("write document name: %w", err)
		}
		if err := f.SetCellHyperLink(DocsSheet, cell, d.URL, "External"); err != nil {
			return fmt.Errorf("link document: %w", err)
		}
		if err := f.SetCellStyle(DocsSheet, cell, cell, hyperlink); err != nil {
			return fmt.Errorf("style document cell: %w", err)
		}
	}
	return nil
}

func presentableDocs(docs []lot.Attachment) []lot.Attachment {
	out := docs[:0:0]
	for _, d := range docs {
		if d.Name != "" && d.URL != "" {
			out = append(out, d)
		}
	}
	return out
}

// openWorkbook loads the destination or creates it with both sheets and
// headers in place.
func (s *Sink) openWorkbook() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), MainSheet); err != nil {
			return nil, fmt.Errorf("name main sheet: %w", err)
		}
		for i, col := range lot.Columns {
			cell, err := excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return nil, fmt.Errorf("header cell name: %w", err)
			}
			if err := f.SetCellValue(MainSheet, cell, col); err != nil {
				return nil, fmt.Errorf("write main header: %w", err)
			}
		}
	}

	if err := ensureDocsSheet(f); err != nil {
		return nil, err
	}
	return f, nil
}

func ensureDocsSheet(f *excelize.File) error {
	if idx, err := f.GetSheetIndex(DocsSheet); err != nil {
		return fmt.Errorf("look up documents sheet: %w", err)
	} else if idx >= 0 {
		return nil
	}
	if _, err := f.NewSheet(DocsSheet); err != nil {
		return fmt.Errorf("create documents sheet: %w", err)
	}
	for i, col := range docsSheetHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("documents header cell name: %w", err)
		}
		if err := f.SetCellValue(DocsSheet, cell, col); err != nil {
			return fmt.Errorf("write documents header: %w", err)
		}
	}
	return nil
}

// mainHeaderMap reads the primary header, appends any columns the header
// set has grown since the file was written, and returns header→column
// (1-based) plus the next free row.
func mainHeaderMap(f *excelize.File) (map[string]int, int, error) {
	rows, err := f.GetRows(MainSheet)
	if err != nil {
		return nil, 0, fmt.Errorf("read main sheet: %w", err)
	}

	headerToCol := map[string]int{}
	width := 0
	if len(rows) > 0 {
		for i, h := range rows[0] {
			if h != "" {
				headerToCol[h] = i + 1
			}
		}
		width = len(rows[0])
	}

	for _, col := range lot.Columns {
		if _, ok := headerToCol[col]; ok {
			continue
		}
		width++
		cell, err := excelize.CoordinatesToCellName(width, 1)
		if err != nil {
			return nil, 0, fmt.Errorf("appended header cell name: %w", err)
		}
		if err := f.SetCellValue(MainSheet, cell, col); err != nil {
			return nil, 0, fmt.Errorf("append header column: %w", err)
		}
		headerToCol[col] = width
	}

	nextRow := len(rows) + 1
	if nextRow < 2 {
		nextRow = 2
	}
	return headerToCol, nextRow, nil
}

// existingDocKeys maps lot keys already on the Documents sheet to their
// row numbers, so re-runs link instead of duplicating.
func existingDocKeys(f *excelize.File) (map[string]int, int, error) {
	rows, err := f.GetRows(DocsSheet)
	if err != nil {
		return nil, 0, fmt.Errorf("read documents sheet: %w", err)
	}

	keys := map[string]int{}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 {
			continue
		}
		if key := strings.TrimSpace(rows[i][0]); key != "" {
			keys[key] = i + 1
		}
	}

	nextRow := len(rows) + 1
	if nextRow < 2 {
		nextRow = 2
	}
	return keys, nextRow, nil
}

// applyPresentation sets widths, bold headers and frozen header rows.
// Purely cosmetic; failures here are still surfaced because they indicate
// a broken workbook.
func applyPresentation(f *excelize.File) error {
	bold, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows, err := f.GetRows(MainSheet)
	if err != nil {
		return fmt.Errorf("read main sheet for presentation: %w", err)
	}
	if len(rows) > 0 {
		for i, h := range rows[0] {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return fmt.Errorf("column name: %w", err)
			}
			if w, ok := columnWidths[h]; ok {
				if err := f.SetColWidth(MainSheet, name, name, w); err != nil {
					return fmt.Errorf("set column width: %w", err)
				}
			}
		}
		end, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return fmt.Errorf("header end cell: %w", err)
		}
		if err := f.SetCellStyle(MainSheet, "A1", end, bold); err != nil {
			return fmt.Errorf("style main header: %w", err)
		}
	}

	if err := f.SetColWidth(DocsSheet, "A", "A", 25); err != nil {
		return fmt.Errorf("set documents key width: %w", err)
	}
	docsRows, err := f.GetRows(DocsSheet)
	if err != nil {
		return fmt.Errorf("read documents sheet for presentation: %w", err)
	}
	maxCols := 0
	for _, r := range docsRows {
		if len(r) > maxCols {
			maxCols = len(r)
		}
	}
	if maxCols > 40 {
		maxCols = 40
	}
	if maxCols >= 2 {
		endName, err := excelize.ColumnNumberToName(maxCols)
		if err != nil {
			return fmt.Errorf("documents column name: %w", err)
		}
		if err := f.SetColWidth(DocsSheet, "B", endName, 45); err != nil {
			return fmt.Errorf("set documents width: %w", err)
		}
	}

	for _, sheet := range []string{MainSheet, DocsSheet} {
		err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
		if err != nil {
			return fmt.Errorf("freeze header row: %w", err)
		}
	}
	return nil
}
