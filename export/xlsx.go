package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	tripSheet    = "Logbook"
	summarySheet = "Summary"
)

// WriteXLSX renders the logbook as a spreadsheet with a trip sheet and a
// summary sheet.
func WriteXLSX(w io.Writer, lb Logbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", tripSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := writeTripSheet(f, lb); err != nil {
		return err
	}
	if err := writeSummarySheet(f, lb); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeTripSheet(f *excelize.File, lb Logbook) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	monthStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"EEF3FA"}},
	})
	if err != nil {
		return fmt.Errorf("creating month-end style: %w", err)
	}

	cols := headers(lb.Config.Mode)
	for i, caption := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(tripSheet, cell, caption); err != nil {
			return err
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(tripSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(tripSheet, "A", lastCol, 12); err != nil {
		return err
	}

	rowIdx := 2
	for _, row := range interleavedRows(lb.Grid) {
		var cells []string
		if row.kind == rowMonthEnd {
			cells = monthEndCells(lb, row.monthEnd)
		} else {
			cells = tripCells(lb, row.trip)
		}
		for i, v := range cells {
			cell, err := excelize.CoordinatesToCellName(i+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(tripSheet, cell, v); err != nil {
				return err
			}
		}
		if row.kind == rowMonthEnd {
			start := fmt.Sprintf("A%d", rowIdx)
			end := fmt.Sprintf("%s%d", lastCol, rowIdx)
			if err := f.SetCellStyle(tripSheet, start, end, monthStyle); err != nil {
				return err
			}
		}
		rowIdx++
	}

	return f.SetPanes(tripSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, lb Logbook) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	lines := summaryLines(lb)
	for i, line := range lines {
		keyCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		valCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, keyCell, line[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, valCell, line[1]); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

// summaryLines is the key/value block shared by both formats.
func summaryLines(lb Logbook) [][2]string {
	lines := [][2]string{
		{"Vehicle", lb.Config.Name},
		{"License plate", lb.Config.LicensePlate},
		{"Year", itoa(lb.Year)},
		{"Start odometer", lb.Grid.YearStartOdometer.String()},
		{"Total km", lb.Stats.TotalKm.String()},
	}
	if lb.Config.Mode.UsesFuel() {
		lines = append(lines,
			[2]string{"Total fuel l", lb.Stats.TotalFuel.String()},
			[2]string{"Total fuel cost", lb.Stats.TotalFuelCost.StringFixed(2)},
			[2]string{"Average l/100km", lb.Stats.AvgRate.StringFixed(2)},
			[2]string{"Fuel remaining l", lb.Stats.FuelRemaining.String()},
		)
		if lb.Stats.HasMargin {
			lines = append(lines, [2]string{"Worst period vs baseline %", lb.Stats.WorstMargin.StringFixed(1)})
		}
		if lb.Stats.OverLimit {
			lines = append(lines, [2]string{"Over the allowed band", "yes"})
		}
		if lb.Stats.BufferKm.IsPositive() {
			lines = append(lines, [2]string{"Km needed to reach target", lb.Stats.BufferKm.String()})
		}
	}
	return lines
}
