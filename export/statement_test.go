package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/tuition-engine/billing"
)

func sampleStatement() *billing.AccountStatement {
	day := billing.Date(2025, time.August, 15)
	return &billing.AccountStatement{
		Student: billing.Student{
			StudentNumber: "2025-00001",
			FirstName:     "Juan",
			LastName:      "Dela Cruz",
			ProgramName:   "BS Information Technology",
			YearLevel:     "1st Year",
		},
		Period: &billing.EnrollmentPeriod{ID: 2, SchoolYear: "2025-2026", Semester: "1st Semester"},
		Statement: billing.BuildStatement(billing.StatementInput{
			Assessments: []billing.Assessment{{ID: 1, NetAmount: decimal.NewFromInt(6200), CreatedAt: day}},
			Payments: []billing.Payment{{
				ID: 1, AssessmentID: 1, ORNumber: "RCP2025082000017",
				PaymentDate: day.AddDate(0, 0, 5), AmountPaid: decimal.NewFromInt(2000),
			}},
		}),
	}
}

var opts = Options{Currency: "PHP", GeneratedAt: time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)}

func TestRender_PDF(t *testing.T) {
	out, err := Render(sampleStatement(), FormatPDF, opts)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "PDF magic header")
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestRender_XLSX(t *testing.T) {
	out, err := Render(sampleStatement(), FormatXLSX, opts)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"summary", "transactions"}, f.GetSheetList())

	number, err := f.GetCellValue("summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "2025-00001", number)

	balance, err := f.GetCellValue("summary", "B9")
	require.NoError(t, err)
	assert.Equal(t, "4200", balance)

	rows, err := f.GetRows("transactions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Payment - RCP2025082000017", rows[2][1])
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(sampleStatement(), Format("docx"), opts)
	assert.ErrorIs(t, err, billing.ErrValidation)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "statement-2025-00001.xlsx", Filename(sampleStatement(), FormatXLSX))
	assert.Equal(t, "", blankZero("0.00"))
	assert.Equal(t, "12.50", blankZero("12.50"))
}
