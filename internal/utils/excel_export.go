package utils

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"asteroidradar/internal/models"
)

const (
	asteroidSheet = "Asteroids"
	summarySheet  = "By Day"
	infoSheet     = "Info"

	numFmtTwoDecimals = 2 // built-in "0.00"
)

var asteroidHeaders = []string{
	"ID",
	"Codename",
	"Close Approach Date",
	"Absolute Magnitude (H)",
	"Estimated Diameter (km)",
	"Relative Velocity (km/s)",
	"Distance From Earth (au)",
	"Potentially Hazardous",
}

// WriteAsteroidsExcel renders asteroids as an xlsx workbook into w.
func WriteAsteroidsExcel(w io.Writer, asteroids []models.Asteroid, filter models.AsteroidFilter, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", asteroidSheet); err != nil {
		return err
	}

	for i, header := range asteroidHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(asteroidSheet, cell, header)
	}

	for idx, a := range asteroids {
		row := idx + 2
		values := []interface{}{
			a.ID,
			a.Codename,
			a.CloseApproachDate,
			a.AbsoluteMagnitude,
			a.EstimatedDiameter,
			a.RelativeVelocity,
			a.DistanceFromEarth,
			a.IsPotentiallyHazardous,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(asteroidSheet, cell, &values); err != nil {
			return err
		}
	}

	if len(asteroids) > 0 {
		last := len(asteroids) + 1
		if style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals}); err == nil {
			f.SetCellStyle(asteroidSheet, "D2", fmt.Sprintf("G%d", last), style)
		}

		hazard := getConditionalFormatStyle(f, "#FFCCCC")
		err := f.SetConditionalFormat(asteroidSheet, fmt.Sprintf("A2:H%d", last), []excelize.ConditionalFormatOptions{
			{Type: "formula", Criteria: "$H2=TRUE", Format: hazard},
		})
		if err != nil {
			return err
		}
	}

	for i := 1; i <= len(asteroidHeaders); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(asteroidSheet, colName, colName, 22)
	}

	days := countByDay(asteroids)
	if err := createSummarySheet(f, days); err != nil {
		return err
	}
	if err := createInfoSheet(f, asteroids, filter, generatedAt); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

type dayCount struct {
	Day       string
	Total     int
	Hazardous int
}

// countByDay expects asteroids ordered by close-approach date.
func countByDay(asteroids []models.Asteroid) []dayCount {
	days := make([]dayCount, 0)
	for _, a := range asteroids {
		if len(days) == 0 || days[len(days)-1].Day != a.CloseApproachDate {
			days = append(days, dayCount{Day: a.CloseApproachDate})
		}
		current := &days[len(days)-1]
		current.Total++
		if a.IsPotentiallyHazardous {
			current.Hazardous++
		}
	}
	return days
}

func createSummarySheet(f *excelize.File, days []dayCount) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	f.SetSheetRow(summarySheet, "A1", &[]interface{}{"Day", "Asteroids", "Potentially Hazardous"})
	for i, d := range days {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(summarySheet, cell, &[]interface{}{d.Day, d.Total, d.Hazardous})
	}

	if len(days) < 2 {
		return nil
	}

	last := len(days) + 1
	return f.AddChart(summarySheet, "E2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("'%s'!$B$1", summarySheet),
				Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", summarySheet, last),
				Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", summarySheet, last),
			},
			{
				Name:       fmt.Sprintf("'%s'!$C$1", summarySheet),
				Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", summarySheet, last),
				Values:     fmt.Sprintf("'%s'!$C$2:$C$%d", summarySheet, last),
			},
		},
		Title:     []excelize.RichTextRun{{Text: "Close Approaches Per Day"}},
		YAxis:     excelize.ChartAxis{MajorGridLines: true},
		Dimension: excelize.ChartDimension{Width: 600, Height: 400},
	})
}

func createInfoSheet(f *excelize.File, asteroids []models.Asteroid, filter models.AsteroidFilter, generatedAt time.Time) error {
	if _, err := f.NewSheet(infoSheet); err != nil {
		return err
	}

	hazardous := 0
	for _, a := range asteroids {
		if a.IsPotentiallyHazardous {
			hazardous++
		}
	}

	rows := [][]interface{}{
		{"Report Generated", generatedAt.UTC().Format(time.RFC3339)},
		{"Filter", string(filter)},
		{"Total Asteroids", len(asteroids)},
		{"Potentially Hazardous", hazardous},
	}
	if len(asteroids) > 0 {
		rows = append(rows, []interface{}{
			"Date Range",
			fmt.Sprintf("%s to %s", asteroids[0].CloseApproachDate, asteroids[len(asteroids)-1].CloseApproachDate),
		})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(infoSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func getConditionalFormatStyle(f *excelize.File, color string) *int {
	style, err := f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{color},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil
	}
	return &style
}
