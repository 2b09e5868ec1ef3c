package notify

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// Employer is the letterhead printed on every offer letter.
type Employer struct {
	Name     string
	Location string
}

var letterTerms = []string{
	"This offer is contingent upon satisfactory verification of your credentials and references.",
	"Your employment will be governed by the policies of the company as amended from time to time.",
	"Please treat the contents of this letter as confidential.",
}

// RenderLetter writes a one-page A4 offer letter for job to w.
func RenderLetter(w io.Writer, emp Employer, job Job, date time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Offer Letter", true)
	pdf.SetAuthor(emp.Name, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetMargins(20, 20, 20)

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(emp.Name), "", 1, "C", false, 0, "")
	if emp.Location != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, tr(emp.Location), "", 1, "C", false, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, date.Format("2 January 2006"), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Offer of Employment", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("Dear %s,", job.CandidateName)), "", "L", false)
	pdf.Ln(2)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf(
		"We are pleased to offer you the position of %s at %s, with a salary of %s per month.",
		job.Position, emp.Name, job.Salary)), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Terms", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, term := range letterTerms {
		pdf.MultiCell(0, 6, tr("- "+term), "", "L", false)
	}
	pdf.Ln(4)

	pdf.MultiCell(0, 6,
		"Please use the link in the email that accompanied this letter to accept or reject the offer. "+
			"The link works once.", "", "L", false)
	pdf.Ln(10)
	pdf.MultiCell(0, 6, tr("Sincerely,\nHuman Resources, "+emp.Name), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render offer letter: %w", err)
	}
	return nil
}

// renderLetterBytes is RenderLetter into memory, for attaching.
func renderLetterBytes(emp Employer, job Job, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderLetter(&buf, emp, job, date); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
