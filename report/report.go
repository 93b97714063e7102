// Package report exports metric summaries as spreadsheets.
package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/Kevinaie18/intelligence/metrics"
)

const sheetName = "Metrics"

var headers = []string{
	"Operation",
	"Total",
	"Success rate",
	"Avg duration (s)",
	"Avg retries",
	"API calls",
	"API tokens",
}

// WriteSummaryWorkbook writes one row per operation, sorted by name.
func WriteSummaryWorkbook(path string, summaries map[string]metrics.Summary) error {
	if len(summaries) == 0 {
		return fmt.Errorf("WriteSummaryWorkbook: no summaries to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("WriteSummaryWorkbook: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("WriteSummaryWorkbook: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("WriteSummaryWorkbook: %w", err)
		}
	}

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	for row, name := range names {
		s := summaries[name]
		values := []interface{}{
			name,
			s.TotalOperations,
			s.SuccessRate,
			s.AverageDurationSeconds,
			s.AverageRetries,
			s.TotalAPICalls,
			s.TotalAPITokens,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("WriteSummaryWorkbook: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("WriteSummaryWorkbook: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("WriteSummaryWorkbook: save: %w", err)
	}
	return nil
}
