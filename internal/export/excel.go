package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

// Exporter writes booking reports as xlsx files.
type Exporter struct {
	path   string
	logger *zerolog.Logger
}

func NewExporter(path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{path: path, logger: logger}
}

// ExportBookings renders the bookings into an xlsx file and returns its path.
func (e *Exporter) ExportBookings(bookings []*models.Booking, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "F1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	e.writeHeaders(f)
	e.writeRows(f, bookings)

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "B", 40)
	_ = f.SetColWidth(sheetName, "C", "C", 30)
	_ = f.SetColWidth(sheetName, "D", "D", 14)
	_ = f.SetColWidth(sheetName, "E", "E", 20)
	_ = f.SetColWidth(sheetName, "F", "F", 20)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeHeaders(f *excelize.File) {
	headers := []string{"ID", "UUID", "Email", "Status", "Booked For", "Created At"}

	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

func (e *Exporter) writeRows(f *excelize.File, bookings []*models.Booking) {
	for i, booking := range bookings {
		row := i + 3

		bookedFor := ""
		if booking.BookedFor != nil {
			bookedFor = booking.BookedFor.Format("02.01.2006 15:04")
		}

		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), booking.UUID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), booking.Email)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), booking.Status)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), bookedFor)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), booking.CreatedAt.Format("02.01.2006 15:04"))

		if styleID, err := e.statusStyle(f, booking.Status); err == nil {
			cell := fmt.Sprintf("D%d", row)
			_ = f.SetCellStyle(sheetName, cell, cell, styleID)
		}
	}
}

func (e *Exporter) statusStyle(f *excelize.File, status string) (int, error) {
	color := "#FFFFFF"
	switch status {
	case models.StatusCompleted:
		color = "#C6EFCE"
	case models.StatusFailed:
		color = "#FFC7CE"
	case models.StatusProcessing, models.StatusPending:
		color = "#FFEB9C"
	}

	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}
