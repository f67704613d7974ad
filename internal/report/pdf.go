package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const qrImageName = "output-digest"

// SavePDF renders rep into a PDF document. A QR code of the output digest is
// placed next to the summary when qrSize is positive.
func SavePDF(rep RepackReport, out string, qrSize int) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Repack Report", false)
	pdf.SetAuthor("logopack", false)
	pdf.SetCreator("logopack", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Repack Report")
	if qrSize > 0 {
		if err := addDigestQR(pdf, rep, qrSize); err != nil {
			return err
		}
	}
	addSummarySection(pdf, rep)
	addEntriesSection(pdf, rep.Entries)
	addDiagnosticsSection(pdf, rep.Diagnostics)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addDigestQR(pdf *gofpdf.Fpdf, rep RepackReport, size int) error {
	png, err := DigestToQR(rep.OutputDigest, size)
	if err != nil {
		return fmt.Errorf("output digest qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	const side = 30.0
	pdf.ImageOptions(qrImageName, pageW-right-side, 20, side, side, false, opts, 0, "")
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, rep RepackReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Input", value: emptyFallback(rep.Input, "-")},
		{label: "Output", value: emptyFallback(rep.Output, "-")},
		{label: "Format", value: strings.ToUpper(rep.Variant)},
		{label: "Strategy", value: rep.Strategy},
		{label: "Containers", value: strconv.Itoa(rep.Containers)},
		{label: "Replaced", value: strconv.Itoa(rep.Replaced)},
		{label: "Size", value: fmt.Sprintf("%s -> %s (%+d bytes)", rep.InputSizeHuman, rep.OutputSizeHuman, rep.OutputSize-rep.InputSize)},
		{label: "Emitted", value: emptyFallback(rep.PlanLine(), "verbatim copy")},
		{label: "Verified", value: passLabel(rep.Verified)},
		{label: "Created", value: rep.CreatedAt.Format(time.RFC3339)},
	}
	for _, item := range items {
		pdf.CellFormat(35, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 8)
	pdf.MultiCell(0, 4, "Input "+string(rep.InputDigest), "", "L", false)
	pdf.MultiCell(0, 4, "Output "+string(rep.OutputDigest), "", "L", false)
	pdf.Ln(4)
}

func addEntriesSection(pdf *gofpdf.Fpdf, rows []EntryRow) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Entries")
	pdf.Ln(9)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No entries found.", "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{"Pack", "Index", "Offset", "Type", "Status", "Old", "New", "Delta"}
	widths := []float64{14, 14, 28, 18, 30, 26, 26, 24}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		values := []string{
			strconv.Itoa(row.Container),
			strconv.Itoa(row.Index),
			fmt.Sprintf("0x%08X", row.Offset),
			row.Type,
			row.Status,
			strconv.Itoa(row.OldSize),
			strconv.Itoa(row.NewSize),
			fmt.Sprintf("%+d", row.Delta),
		}
		renderTableRow(pdf, widths, values, 5)
	}
	pdf.Ln(4)
}

func addDiagnosticsSection(pdf *gofpdf.Fpdf, diags []string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Diagnostics")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	if len(diags) == 0 {
		pdf.MultiCell(0, 6, "No diagnostics recorded.", "", "L", false)
		return
	}
	for i, d := range diags {
		pdf.MultiCell(0, 5, fmt.Sprintf("%d. %s", i+1, d), "", "L", false)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
