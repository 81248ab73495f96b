package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Invoice carries the fields rendered onto a tuition invoice PDF.
type Invoice struct {
	Number       string
	StudentName  string
	StudentEmail string
	ClassName    string
	PeriodLabel  string
	Amount       string
	DueDate      time.Time
	Status       string
	IssuedAt     time.Time
}

// InvoiceExporter renders tuition invoices as single-page PDFs.
type InvoiceExporter struct {
	centerName string
}

// NewInvoiceExporter constructs an invoice exporter branded with the center name.
func NewInvoiceExporter(centerName string) *InvoiceExporter {
	if centerName == "" {
		centerName = "Tutoring Center"
	}
	return &InvoiceExporter{centerName: centerName}
}

// Render produces the PDF bytes for one invoice.
func (e *InvoiceExporter) Render(inv Invoice) ([]byte, error) {
	if inv.StudentName == "" {
		return nil, fmt.Errorf("invoice requires a student name")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, e.centerName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "TUITION INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Invoice: %s", inv.Number), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued: %s", inv.IssuedAt.Format("2006-01-02")), "", 1, "", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Student", inv.StudentName},
		{"Email", inv.StudentEmail},
		{"Class", inv.ClassName},
		{"Billing period", inv.PeriodLabel},
		{"Amount due", inv.Amount},
		{"Due date", inv.DueDate.Format("2006-01-02")},
		{"Status", inv.Status},
	}

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(130, 8, row[1], "1", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
