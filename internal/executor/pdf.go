package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmesh/x402-gateway/internal/parse"
)

// PDFExecutor renders markdown as a single-page PDF. The document model is
// deliberately small: one Helvetica text column, headings bumped in size,
// no pagination beyond truncation.
type PDFExecutor struct{}

func (e *PDFExecutor) Execute(_ context.Context, req parse.Request) (*Result, error) {
	body := buildPDF(req.Content)
	return &Result{
		Data: map[string]any{"bytes": len(body), "mimeType": "application/pdf"},
		Body: body,
		Mime: "application/pdf",
	}, nil
}

// buildPDF emits a minimal but valid PDF 1.4 file with a correct xref
// table.
func buildPDF(md string) []byte {
	var content strings.Builder
	content.WriteString("BT\n")
	y := 780
	for _, line := range strings.Split(md, "\n") {
		if y < 40 {
			break
		}
		trimmed := strings.TrimSpace(line)
		size := 11
		if strings.HasPrefix(trimmed, "# ") {
			size = 18
			trimmed = strings.TrimPrefix(trimmed, "# ")
		} else if strings.HasPrefix(trimmed, "## ") {
			size = 14
			trimmed = strings.TrimPrefix(trimmed, "## ")
		}
		fmt.Fprintf(&content, "/F1 %d Tf\n1 0 0 1 50 %d Tm\n(%s) Tj\n", size, y, escapePDF(trimmed))
		y -= size + 5
	}
	content.WriteString("ET\n")

	stream := content.String()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var out strings.Builder
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(out.String())
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
