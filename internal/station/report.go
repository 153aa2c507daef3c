package station

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/sctest/station/internal/diag"
)

// Report page layout, in mm on A4 portrait.
const (
	reportTitle      = "Rapport diagnostic complet"
	reportMarginLeft = 20.0
	reportTitleY     = 25.0
	reportFirstLineY = 45.0
	reportLineStep   = 8.5
	reportBottomY    = 277.0
)

// statusColors is the three-way status palette (RGB).
var statusColors = map[diag.Result][3]int{
	diag.Pass:     {0, 153, 0},
	diag.Fail:     {204, 0, 0},
	diag.Untested: {153, 153, 0},
}

// compressReports is turned off in tests to inspect page content.
var compressReports = true

type reportLine struct {
	Text  string
	Color [3]int
}

// reportLines lays out one line per entry, in report order.
func reportLines(rep diag.Report) []reportLine {
	lines := make([]reportLine, len(rep.Entries))
	for i, e := range rep.Entries {
		lines[i] = reportLine{
			Text:  fmt.Sprintf("%s : %s", e.Label, e.Result),
			Color: statusColors[e.Result],
		}
	}
	return lines
}

// WriteReportPDF renders rep and writes it to outputPath.
func WriteReportPDF(rep diag.Report, generated time.Time, outputPath string) error {
	data, err := GenerateReportPDF(rep, generated)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

// GenerateReportPDF renders rep as a PDF in memory. It depends only on its
// arguments.
func GenerateReportPDF(rep diag.Report, generated time.Time) ([]byte, error) {
	pdf, err := buildReportPDF(rep, generated)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return out.Bytes(), nil
}

func buildReportPDF(rep diag.Report, generated time.Time) (*fpdf.Fpdf, error) {
	if len(rep.Entries) == 0 {
		return nil, fmt.Errorf("no entries to render")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compressReports)
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(reportTitle, true)
	pdf.SetCreator("sctest-station", false)
	pdf.SetCreationDate(generated)
	pdf.SetModificationDate(generated)
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252 for the core fonts

	newPage := func() float64 {
		pdf.AddPage()
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 20)
		pdf.Text(reportMarginLeft, reportTitleY, tr(reportTitle))
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(reportMarginLeft, reportTitleY+8, tr("Généré le "+generated.Format("02/01/2006 15:04:05")))
		pdf.SetFont("Helvetica", "", 12)
		return reportFirstLineY
	}

	y := newPage()
	for _, line := range reportLines(rep) {
		if y > reportBottomY {
			y = newPage()
		}
		pdf.SetTextColor(line.Color[0], line.Color[1], line.Color[2])
		pdf.Text(reportMarginLeft+5, y, tr(line.Text))
		y += reportLineStep
	}
	return pdf, pdf.Error()
}
