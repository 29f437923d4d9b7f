// Package export renders account statements as downloadable documents.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/warp/tuition-engine/billing"
)

// Format is a document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// Options carries presentation settings.
type Options struct {
	Currency    string // ISO code printed next to totals, e.g. PHP
	GeneratedAt time.Time
}

// Filename returns the attachment name of a statement.
func Filename(st *billing.AccountStatement, f Format) string {
	return fmt.Sprintf("statement-%s.%s", st.Student.StudentNumber, f)
}

// Render dispatches on format.
func Render(st *billing.AccountStatement, f Format, opts Options) ([]byte, error) {
	switch f {
	case FormatPDF:
		return StatementPDF(st, opts)
	case FormatXLSX:
		return StatementXLSX(st, opts)
	}
	return nil, billing.Invalid("format", "Unsupported export format: %s", f)
}

func periodLabel(p *billing.EnrollmentPeriod) string {
	if p == nil {
		return "All periods"
	}
	return p.SchoolYear + " " + p.Semester
}

// StatementPDF renders a statement as an A4 PDF.
func StatementPDF(st *billing.AccountStatement, opts Options) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Statement of Account")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Student: %s (%s)", st.Student.Name(), st.Student.StudentNumber))
	pdf.Ln(5)
	if st.Student.ProgramName != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Program: %s %s", st.Student.ProgramName, st.Student.YearLevel))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, "Period: "+periodLabel(st.Period))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Generated: "+opts.GeneratedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(28, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Charges", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Payments", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Balance", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, row := range st.Statement.Rows {
		pdf.CellFormat(28, 6, row.Date.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, row.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, blankZero(row.Charges.StringFixed(2)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, blankZero(row.Payments.StringFixed(2)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, row.Balance.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total Charges (%s): %s", opts.Currency, st.Statement.TotalCharges.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Payments (%s): %s", opts.Currency, st.Statement.TotalPayments.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Current Balance (%s): %s", opts.Currency, st.Statement.CurrentBalance.StringFixed(2)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func blankZero(s string) string {
	if s == "0.00" {
		return ""
	}
	return s
}

// StatementXLSX renders a statement as a two-sheet workbook.
func StatementXLSX(st *billing.AccountStatement, opts Options) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	rowsSheet := "transactions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(rowsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Statement of Account")
	_ = f.SetCellValue(summarySheet, "A3", "Student Number")
	_ = f.SetCellValue(summarySheet, "B3", st.Student.StudentNumber)
	_ = f.SetCellValue(summarySheet, "A4", "Name")
	_ = f.SetCellValue(summarySheet, "B4", st.Student.Name())
	_ = f.SetCellValue(summarySheet, "A5", "Program")
	_ = f.SetCellValue(summarySheet, "B5", st.Student.ProgramName)
	_ = f.SetCellValue(summarySheet, "A6", "Period")
	_ = f.SetCellValue(summarySheet, "B6", periodLabel(st.Period))
	_ = f.SetCellValue(summarySheet, "A7", "Total Charges")
	_ = f.SetCellValue(summarySheet, "B7", billing.Float(st.Statement.TotalCharges))
	_ = f.SetCellValue(summarySheet, "A8", "Total Payments")
	_ = f.SetCellValue(summarySheet, "B8", billing.Float(st.Statement.TotalPayments))
	_ = f.SetCellValue(summarySheet, "A9", "Current Balance")
	_ = f.SetCellValue(summarySheet, "B9", billing.Float(st.Statement.CurrentBalance))
	_ = f.SetCellValue(summarySheet, "A10", "Currency")
	_ = f.SetCellValue(summarySheet, "B10", opts.Currency)
	_ = f.SetCellValue(summarySheet, "A11", "Generated")
	_ = f.SetCellValue(summarySheet, "B11", opts.GeneratedAt.Format("2006-01-02 15:04:05"))

	_ = f.SetCellValue(rowsSheet, "A1", "Date")
	_ = f.SetCellValue(rowsSheet, "B1", "Description")
	_ = f.SetCellValue(rowsSheet, "C1", "Charges")
	_ = f.SetCellValue(rowsSheet, "D1", "Payments")
	_ = f.SetCellValue(rowsSheet, "E1", "Balance")
	for i, row := range st.Statement.Rows {
		n := i + 2
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("A%d", n), row.Date.Format("2006-01-02"))
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("B%d", n), row.Description)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("C%d", n), billing.Float(row.Charges))
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("D%d", n), billing.Float(row.Payments))
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("E%d", n), billing.Float(row.Balance))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
