package performance

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"taskscore/internal/domain/core"
)

// Scorecard renders the employee's live score and recent history as a PDF.
func (s *Service) Scorecard(ctx context.Context, tenantID, employeeID string) ([]byte, error) {
	emp, err := s.directory.GetEmployee(ctx, tenantID, employeeID)
	if err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	live, err := s.store.LatestScore(ctx, tenantID, employeeID)
	if err != nil {
		return nil, err
	}
	history, err := s.History(ctx, tenantID, employeeID, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	return renderScorecard(*emp, live, history)
}

func renderScorecard(emp core.Employee, live EmployeeScore, history []EmployeeScore) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Scorecard")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", emp.DisplayName()))
	pdf.Ln(7)
	if emp.JobTitle != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Title: %s", emp.JobTitle))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", live.PeriodStart.Format("2006-01-02"), live.PeriodEnd.Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %.2f  Grade: %s", live.TotalScore, live.Grade))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	rows := []struct {
		label string
		value float64
	}{
		{"Task rating", live.TaskRatingScore},
		{"Completion", live.CompletionScore},
		{"Consistency", live.ConsistencyScore},
		{"Disciplinary", live.DisciplinaryScore},
	}
	for _, row := range rows {
		pdf.CellFormat(60, 8, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", row.value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
	pdf.Cell(0, 8, fmt.Sprintf("Tasks reviewed: %d (approved %d, rejected %d)", live.TasksConsidered, live.ApprovedCount, live.RejectedCount))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Average rating: %.2f  On-time rate: %.0f%%  Warnings: %d", live.AverageRating, live.OnTimeRate*100, live.WarningCount))
	pdf.Ln(12)

	if len(history) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 8, "Calculated", "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 8, "Period start", "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, "Total", "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 8, "Grade", "1", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, h := range history {
			pdf.CellFormat(50, 7, h.CalculatedAt.UTC().Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 7, h.PeriodStart.Format("2006-01-02"), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", h.TotalScore), "1", 0, "R", false, 0, "")
			pdf.CellFormat(20, 7, h.Grade, "1", 1, "C", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
