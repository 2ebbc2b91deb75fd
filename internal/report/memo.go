// Package report renders a FinalResult into a memo document. It is a pure
// sink: nothing here feeds back into the pipeline.
package report

import (
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"propsim/internal/types"
)

const disclaimer = "Scoring Method Disclaimer:\n" +
	"1. Individual scores (Impact, Speed, Cost-Risk) are generated on a scale of 0-10.\n" +
	"2. The composite score for each strategy is calculated as: (Impact * 0.5) + (Speed * 0.3) + ((10 - Cost-Risk) * 0.2).\n" +
	"3. The final simulation score is the average of the top three strategies' composite scores, converted to a 0.0-1.0 scale."

// WriteMemoPDF renders the memo for a completed run to path.
func WriteMemoPDF(result *types.FinalResult, subject, path string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetMargins(15, 25, 15)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, "MEMORANDUM FOR THE RECORD", "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-25)
		pdf.SetFont("Helvetica", "I", 7)
		x, y := pdf.GetXY()
		pdf.Line(x, y, x+180, y)
		pdf.Ln(2)
		pdf.MultiCell(0, 3.5, disclaimer, "", "L", false)
	})

	pdf.AddPage()
	memoField(pdf, "TO:", "Interested Parties")
	memoField(pdf, "FROM:", "Simulation & Strategy Unit")
	memoField(pdf, "DATE:", time.Now().Format("January 2, 2006"))
	memoField(pdf, "SUBJECT:", subject)
	pdf.Ln(8)

	sectionTitle(pdf, "1. DIAGNOSIS")
	sectionBody(pdf, result.Report.DiagnosisSummary)

	sectionTitle(pdf, "2. RECOMMENDED STRATEGIC ACTIONS")
	for _, action := range result.Report.DetailedActions {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 5, "  * "+action.Name, "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetLeftMargin(22)
		pdf.MultiCell(0, 5, action.Explanation, "", "L", false)
		pdf.SetLeftMargin(15)
		pdf.Ln(3)
	}

	sectionTitle(pdf, "3. STRATEGIC ANALYSIS & FORECAST")
	sectionBody(pdf, fmt.Sprintf("Simulation score: %.2f\n\n%s", result.SimulationScore, result.Report.ForecastAnalysis))

	sectionTitle(pdf, "4. COMMENTARY: AGENT & SELLER BEHAVIOUR")
	sectionBody(pdf, result.Report.BehaviouralCommentary)

	return pdf.OutputFileAndClose(path)
}

func memoField(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(22, 5, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 5, value, "", 1, "L", false, 0, "")
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.Ln(4)
}

func sectionBody(pdf *fpdf.Fpdf, body string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5, body, "", "L", false)
	pdf.Ln(6)
}
