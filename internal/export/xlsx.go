// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package export writes the activity table as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tomtom215/stridemap/internal/activity"
)

// SheetName is the worksheet holding the activity table.
const SheetName = "Activities"

// ContentType is the MIME type of the XLSX workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Date", "Time", "Moving time", "Name", "Type", "ID", "Distance (km)", "Avg pace (min/km)", "Max pace (min/km)"}

var columnWidths = []float64{12, 10, 12, 36, 12, 14, 14, 18, 18}

// WriteActivities writes list, in its current order, as an XLSX workbook.
func WriteActivities(w io.Writer, list []activity.Activity) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}

	for r, a := range list {
		row := []interface{}{
			activity.FormatDate(a.StartDateLocal),
			activity.FormatClock(a.StartDateLocal),
			activity.FormatMovingTime(a.MovingTime),
			a.Name,
			a.Type,
			a.ID,
			a.Distance / 1000,
			activity.SpeedToPace(a.AverageSpeed),
			activity.SpeedToPace(a.MaxSpeed),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
