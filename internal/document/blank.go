package document

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// minBlankSize keeps generated files large enough for pdfcpu, which reads the
// trailer from a fixed-size window at the end of the file.
const minBlankSize = 1024

// BlankPDF builds a minimal well-formed PDF with the given number of empty
// pages of size width x height points. It backs the parser self-check. A
// comment line after the header pads the file to at least minBlankSize bytes.
func BlankPDF(pages int, width, height float64) []byte {
	if pages < 0 {
		pages = 0
	}
	var buf bytes.Buffer
	offsets := make([]int, 0, pages+2)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	buf.WriteString("%" + strings.Repeat("-", minBlankSize) + "\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids.WriteByte(' ')
		}
		fmt.Fprintf(&kids, "%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages))

	w := strconv.FormatFloat(width, 'f', -1, 64)
	h := strconv.FormatFloat(height, 'f', -1, 64)
	for i := 0; i < pages; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << >> >>", w, h))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
