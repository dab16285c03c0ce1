package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/judgment-search/internal/core/domain"
	"github.com/kirillkom/judgment-search/internal/core/highlight"
)

const (
	resultsSheet  = "Results"
	summarySheet  = "Summary"
	outcomesSheet = "Outcomes"
)

// WriteSearchPage exports search hits with plain-text snippets.
func WriteSearchPage(w io.Writer, page *domain.SearchPage) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	rows := [][]any{{"ID", "Title", "Source", "Type", "Snippet"}}
	if page != nil {
		for _, result := range page.Results {
			doc := result.Document
			rows = append(rows, []any{doc.ID, doc.Title, doc.Source, doc.Type, highlight.Snippet(doc.Content, highlight.SnippetRunes)})
		}
	}
	if err := writeRows(f, resultsSheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(resultsSheet, "B", "B", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(resultsSheet, "E", "E", 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteBatchReport exports a batch summary sheet and one row per file.
func WriteBatchReport(w io.Writer, summary domain.BatchSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(outcomesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header := [][]any{
		{"Batch", summary.ID},
		{"Status", summary.Status.String()},
		{"Total", summary.Total},
		{"Succeeded", summary.SuccessCount},
		{"Failed", summary.FailCount},
		{"Started", formatTime(summary.StartedAt)},
		{"Finished", formatTime(summary.FinishedAt)},
		{"Result", summary.ResultMessage()},
	}
	if err := writeRows(f, summarySheet, header); err != nil {
		return err
	}

	rows := [][]any{{"#", "File", "Result", "Error"}}
	for i, outcome := range summary.Outcomes {
		result := "ok"
		if !outcome.Succeeded {
			result = "failed"
		}
		rows = append(rows, []any{i + 1, outcome.Name, result, outcome.Error})
	}
	if err := writeRows(f, outcomesSheet, rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
