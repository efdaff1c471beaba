package export

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"bankrot/harvester/internal/lot"
)

func testRecord(trade, lotNum string, docs ...lot.Attachment) *lot.Record {
	return &lot.Record{
		TradeNumber: lot.Found(trade),
		LotNumber:   lot.Found(lotNum),
		Address:     lot.Found("г. Казань, ул. Баумана, д. 1"),
		StartPrice:  lot.Found("1 000 000"),
		BidStep:     lot.Found("50 000"),
		Deposit:     lot.Absent,
		TradePeriod: "01.02.2026 — 01.03.2026",
		Status:      lot.Found("Идут торги"),
		DebtorInfo:  "ООО Ромашка; ИНН: 1655000000",
		Description: lot.Found("Квартира"),
		Documents:   docs,
	}
}

func newTestSink(t *testing.T) (*Sink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lots.xlsx")
	return NewSink(path, zap.NewNop()), path
}

func openForCheck(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAppendCreatesWorkbookWithHeaders(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	n, err := sink.Append([]*lot.Record{testRecord("982", "14")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f := openForCheck(t, path)
	rows, err := f.GetRows(MainSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, lot.Columns, rows[0])
	assert.Equal(t, "982 / 14", rows[1][0])
	assert.Equal(t, "Отсутствует", rows[1][4])

	docsRows, err := f.GetRows(DocsSheet)
	require.NoError(t, err)
	require.NotEmpty(t, docsRows)
	assert.Equal(t, "Номер аукциона / лота", docsRows[0][0])
}

func TestAppendZeroDocumentsMarker(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	_, err := sink.Append([]*lot.Record{testRecord("1", "1")})
	require.NoError(t, err)

	f := openForCheck(t, path)
	val, err := f.GetCellValue(MainSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "Документы (0)", val)

	ok, _, err := f.GetCellHyperLink(MainSheet, "G2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendLinksDocumentsRow(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	rec := testRecord("982", "14",
		lot.Attachment{Name: "Отчёт", URL: "https://x/docs/1.pdf"},
		lot.Attachment{Name: "Положение", URL: "https://x/docs/2.pdf"},
	)
	_, err := sink.Append([]*lot.Record{rec})
	require.NoError(t, err)

	f := openForCheck(t, path)
	val, err := f.GetCellValue(MainSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "Документы (2)", val)

	ok, link, err := f.GetCellHyperLink(MainSheet, "G2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Documents!A2", link)

	docsRows, err := f.GetRows(DocsSheet)
	require.NoError(t, err)
	require.Len(t, docsRows, 2)
	assert.Equal(t, "982 / 14", docsRows[1][0])
	assert.Equal(t, "Отчёт", docsRows[1][1])
	assert.Equal(t, "Положение", docsRows[1][2])

	ok, link, err = f.GetCellHyperLink(DocsSheet, "B2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://x/docs/1.pdf", link)
}

func TestAppendSharedKeySingleDocumentsRow(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	a := testRecord("5", "7", lot.Attachment{Name: "Документ А", URL: "https://x/a.pdf"})
	b := testRecord("5", "7", lot.Attachment{Name: "Документ Б", URL: "https://x/b.pdf"})

	n, err := sink.Append([]*lot.Record{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f := openForCheck(t, path)
	mainRows, err := f.GetRows(MainSheet)
	require.NoError(t, err)
	assert.Len(t, mainRows, 3)

	docsRows, err := f.GetRows(DocsSheet)
	require.NoError(t, err)
	require.Len(t, docsRows, 2)
	assert.Equal(t, "5 / 7", docsRows[1][0])

	for _, cell := range []string{"G2", "G3"} {
		ok, link, err := f.GetCellHyperLink(MainSheet, cell)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Documents!A2", link)
	}
}

func TestAppendAcrossRunsReusesDocumentsRow(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	_, err := sink.Append([]*lot.Record{
		testRecord("9", "1", lot.Attachment{Name: "Первый", URL: "https://x/1.pdf"}),
	})
	require.NoError(t, err)

	// Second invocation against the same destination.
	_, err = sink.Append([]*lot.Record{
		testRecord("9", "1", lot.Attachment{Name: "Второй", URL: "https://x/2.pdf"}),
		testRecord("9", "2", lot.Attachment{Name: "Третий", URL: "https://x/3.pdf"}),
	})
	require.NoError(t, err)

	f := openForCheck(t, path)
	mainRows, err := f.GetRows(MainSheet)
	require.NoError(t, err)
	assert.Len(t, mainRows, 4)

	docsRows, err := f.GetRows(DocsSheet)
	require.NoError(t, err)
	// One row per distinct key: "9 / 1" and "9 / 2".
	require.Len(t, docsRows, 3)
	assert.Equal(t, "9 / 1", docsRows[1][0])
	assert.Equal(t, "9 / 2", docsRows[2][0])
}

func TestAppendEmptyBatch(t *testing.T) {
	t.Parallel()

	sink, _ := newTestSink(t)
	n, err := sink.Append(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAppendGrowsHeaderSet(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)

	// Simulate an older file whose header lacks the trailing columns.
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), MainSheet))
	for i, col := range lot.Columns[:5] {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(MainSheet, cell, col))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := sink.Append([]*lot.Record{testRecord("982", "14")})
	require.NoError(t, err)

	check := openForCheck(t, path)
	rows, err := check.GetRows(MainSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.ElementsMatch(t, lot.Columns, rows[0])

	// The status value must land under the appended status header.
	statusCol := -1
	for i, h := range rows[0] {
		if h == "Статус аукциона" {
			statusCol = i
		}
	}
	require.NotEqual(t, -1, statusCol)
	assert.Equal(t, "Идут торги", rows[1][statusCol])
}

func TestAppendSkipsBlankAttachments(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	rec := testRecord("3", "3",
		lot.Attachment{Name: "", URL: "https://x/ghost.pdf"},
		lot.Attachment{Name: "Без ссылки", URL: ""},
	)
	_, err := sink.Append([]*lot.Record{rec})
	require.NoError(t, err)

	f := openForCheck(t, path)
	val, err := f.GetCellValue(MainSheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "Документы (0)", val)
}

func TestAppendManyDistinctKeys(t *testing.T) {
	t.Parallel()

	sink, path := newTestSink(t)
	var recs []*lot.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, testRecord("100", fmt.Sprint(i),
			lot.Attachment{Name: "Док", URL: fmt.Sprintf("https://x/%d.pdf", i)}))
	}
	n, err := sink.Append(recs)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	f := openForCheck(t, path)
	docsRows, err := f.GetRows(DocsSheet)
	require.NoError(t, err)
	assert.Len(t, docsRows, 6)
}
