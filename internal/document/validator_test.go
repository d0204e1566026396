package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeParser returns a fixed Info or error and counts calls.
type fakeParser struct {
	info  Info
	err   error
	calls int
}

func (p *fakeParser) Name() string { return "fake" }

func (p *fakeParser) Inspect(data []byte) (Info, error) {
	p.calls++
	return p.info, p.err
}

func a4(pages int) *fakeParser {
	return &fakeParser{info: Info{PageCount: pages, FirstPage: Dim{Width: 595, Height: 842}}}
}

func TestValidateSinglePage(t *testing.T) {
	v := NewValidator(a4(1), Options{})
	res := v.Validate(context.Background(), FromBytes("a.pdf", "application/pdf", []byte("%PDF-1.4")))

	require.Nil(t, res.Err)
	require.Equal(t, SinglePage, res.Outcome)
	require.Equal(t, 1, res.TotalPages)
	require.Equal(t, []int{0}, res.SelectedPages)
	require.Equal(t, []byte("%PDF-1.4"), res.Bytes)
}

func TestValidateMultiPage(t *testing.T) {
	v := NewValidator(a4(3), Options{})
	res := v.Validate(context.Background(), FromBytes("b.pdf", "application/pdf", []byte("%PDF-1.4")))

	require.Nil(t, res.Err)
	require.Equal(t, MultiPage, res.Outcome)
	require.Equal(t, 3, res.TotalPages)
	require.Nil(t, res.SelectedPages)
}

func TestValidateWrongTypeDoesNotRead(t *testing.T) {
	p := a4(1)
	v := NewValidator(p, Options{})
	f := File{
		Name: "c.txt",
		Type: "text/plain",
		Open: func() (io.ReadCloser, error) {
			t.Fatal("content must not be read for a declared wrong type")
			return nil, nil
		},
	}
	res := v.Validate(context.Background(), f)

	require.Equal(t, Invalid, res.Outcome)
	require.Equal(t, KindWrongType, res.Err.Kind)
	require.Equal(t, "c.txt is not a PDF file", res.Err.Message)
	require.False(t, res.Err.Stored())
	require.ErrorIs(t, res.Err, ErrWrongType)
	require.Zero(t, p.calls)
}

func TestValidateSniffsUndeclaredType(t *testing.T) {
	v := NewValidator(a4(1), Options{})

	res := v.Validate(context.Background(), FromBytes("notes", "", []byte("hello there\n")))
	require.Equal(t, KindWrongType, res.Err.Kind)
	require.Equal(t, "notes is not a PDF file", res.Err.Message)

	res = v.Validate(context.Background(), FromBytes("scan", "application/octet-stream", BlankPDF(1, 595, 842)))
	require.Nil(t, res.Err)
	require.Equal(t, SinglePage, res.Outcome)
}

func TestValidateReadFailure(t *testing.T) {
	v := NewValidator(a4(1), Options{})
	f := File{
		Name: "a.pdf",
		Type: "application/pdf",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("disk on fire") },
	}
	res := v.Validate(context.Background(), f)

	require.Equal(t, KindReadFailure, res.Err.Kind)
	require.Equal(t, "disk on fire", res.Err.Message)
	require.True(t, res.Err.Stored())
	require.ErrorIs(t, res.Err, ErrReadFailure)

	res = v.Validate(context.Background(), File{Name: "x.pdf", Type: "application/pdf"})
	require.Equal(t, KindReadFailure, res.Err.Kind)
}

func TestValidateSizeLimit(t *testing.T) {
	v := NewValidator(a4(1), Options{MaxBytes: 4})
	res := v.Validate(context.Background(), FromBytes("big.pdf", "application/pdf", []byte("%PDF-1.4")))

	require.Equal(t, KindReadFailure, res.Err.Kind)
	require.Equal(t, "File exceeds maximum size of 4 bytes", res.Err.Message)
	require.ErrorIs(t, res.Err, ErrFileTooLarge)

	// size not declared up front: the limit is enforced while reading
	f := FromBytes("big.pdf", "application/pdf", []byte("%PDF-1.4"))
	f.Size = 0
	res = v.Validate(context.Background(), f)
	require.ErrorIs(t, res.Err, ErrFileTooLarge)
}

func TestValidateParseFailure(t *testing.T) {
	v := NewValidator(&fakeParser{err: errors.New("xref table broken")}, Options{})
	res := v.Validate(context.Background(), FromBytes("bad.pdf", "application/pdf", []byte("junk")))
	require.Equal(t, KindParseFailure, res.Err.Kind)
	require.Equal(t, "xref table broken", res.Err.Message)
	require.Zero(t, res.TotalPages)

	v = NewValidator(&fakeParser{err: errors.New("")}, Options{})
	res = v.Validate(context.Background(), FromBytes("bad.pdf", "application/pdf", []byte("junk")))
	require.Equal(t, "Invalid or corrupted file", res.Err.Message)
}

func TestValidateEmptyDocument(t *testing.T) {
	v := NewValidator(&fakeParser{info: Info{PageCount: 0}}, Options{})
	res := v.Validate(context.Background(), FromBytes("empty.pdf", "application/pdf", []byte("%PDF")))

	require.Equal(t, Invalid, res.Outcome)
	require.Equal(t, KindEmptyDocument, res.Err.Kind)
	require.Equal(t, "PDF has no pages", res.Err.Message)
}

func TestValidateInvalidGeometry(t *testing.T) {
	for _, dim := range []Dim{{0, 842}, {595, 0}, {-1, -1}} {
		v := NewValidator(&fakeParser{info: Info{PageCount: 2, FirstPage: dim}}, Options{})
		res := v.Validate(context.Background(), FromBytes("odd.pdf", "application/pdf", []byte("%PDF")))
		require.Equal(t, KindInvalidGeometry, res.Err.Kind)
		require.Equal(t, "Invalid page dimensions", res.Err.Message)
		require.Equal(t, 2, res.TotalPages)
	}
}

func TestValidateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := NewValidator(a4(1), Options{})
	res := v.Validate(ctx, FromBytes("a.pdf", "application/pdf", []byte("%PDF")))
	require.Equal(t, KindReadFailure, res.Err.Kind)
	require.ErrorIs(t, res.Err, context.Canceled)
}

func TestPDFCPUParser(t *testing.T) {
	p := NewPDFCPUParser()

	info, err := p.Inspect(BlankPDF(1, 595, 842))
	require.NoError(t, err)
	require.Equal(t, 1, info.PageCount)
	require.InDelta(t, 595, info.FirstPage.Width, 0.01)
	require.InDelta(t, 842, info.FirstPage.Height, 0.01)

	info, err = p.Inspect(BlankPDF(3, 612, 792))
	require.NoError(t, err)
	require.Equal(t, 3, info.PageCount)

	_, err = p.Inspect([]byte("this is not a pdf at all"))
	require.Error(t, err)
}

func TestValidateWithPDFCPU(t *testing.T) {
	v := NewValidator(NewPDFCPUParser(), Options{})

	res := v.Validate(context.Background(), FromBytes("a.pdf", "application/pdf", BlankPDF(1, 595, 842)))
	require.Nil(t, res.Err)
	require.Equal(t, SinglePage, res.Outcome)

	res = v.Validate(context.Background(), FromBytes("b.pdf", "application/pdf", BlankPDF(3, 595, 842)))
	require.Nil(t, res.Err)
	require.Equal(t, MultiPage, res.Outcome)
	require.Equal(t, 3, res.TotalPages)

	corrupt := []byte("%PDF-1.4\nthis file was cut off before any object was written\n")
	res = v.Validate(context.Background(), FromBytes("corrupt.pdf", "application/pdf", corrupt))
	require.Equal(t, Invalid, res.Outcome)
	require.Equal(t, KindParseFailure, res.Err.Kind)
	require.NotEmpty(t, res.Err.Message)
}

func TestValidateBlankPDFsWithPDFCPU(t *testing.T) {
	v := NewValidator(NewPDFCPUParser(), Options{})
	cases := []struct {
		pages   int
		outcome Outcome
		kind    Kind
	}{
		{0, Invalid, KindEmptyDocument},
		{1, SinglePage, ""},
		{2, MultiPage, ""},
		{5, MultiPage, ""},
	}
	for _, tc := range cases {
		res := v.Validate(context.Background(), FromBytes("blank.pdf", "application/pdf", BlankPDF(tc.pages, 595, 842)))
		require.Equal(t, tc.outcome, res.Outcome, "pages=%d", tc.pages)
		if tc.kind != "" {
			require.Equal(t, tc.kind, res.Err.Kind)
			require.Equal(t, "PDF has no pages", res.Err.Message)
			continue
		}
		require.Nil(t, res.Err, "pages=%d", tc.pages)
		require.Equal(t, tc.pages, res.TotalPages)
	}

	res := v.Validate(context.Background(), FromBytes("flat.pdf", "application/pdf", BlankPDF(2, 0, 842)))
	require.Equal(t, KindInvalidGeometry, res.Err.Kind)
}

func TestFitzParser(t *testing.T) {
	p := NewFitzParser()
	require.Equal(t, ParserFitz, p.Name())

	info, err := p.Inspect(BlankPDF(1, 595, 842))
	require.NoError(t, err)
	require.Equal(t, 1, info.PageCount)
	require.InDelta(t, 595, info.FirstPage.Width, 1)
	require.InDelta(t, 842, info.FirstPage.Height, 1)

	info, err = p.Inspect(BlankPDF(3, 612, 792))
	require.NoError(t, err)
	require.Equal(t, 3, info.PageCount)

	_, err = p.Inspect([]byte("this is not a pdf at all"))
	require.Error(t, err)
}

func TestValidateWithFitz(t *testing.T) {
	v := NewValidator(NewFitzParser(), Options{})

	res := v.Validate(context.Background(), FromBytes("a.pdf", "application/pdf", BlankPDF(1, 595, 842)))
	require.Nil(t, res.Err)
	require.Equal(t, SinglePage, res.Outcome)

	res = v.Validate(context.Background(), FromBytes("b.pdf", "application/pdf", BlankPDF(4, 595, 842)))
	require.Nil(t, res.Err)
	require.Equal(t, MultiPage, res.Outcome)
	require.Equal(t, 4, res.TotalPages)
}

func TestBlankPDFLayout(t *testing.T) {
	b := string(BlankPDF(2, 100, 200))
	require.True(t, strings.HasPrefix(b, "%PDF-1.4\n"))
	require.True(t, strings.HasSuffix(b, "%%EOF\n"))
	require.Contains(t, b, "/Count 2")
	require.Contains(t, b, "/MediaBox [0 0 100 200]")

	for _, n := range []int{0, 1, 2} {
		require.Greater(t, len(BlankPDF(n, 595, 842)), minBlankSize)
	}
}

func TestNewParser(t *testing.T) {
	p, err := NewParser("")
	require.NoError(t, err)
	require.Equal(t, ParserPDFCPU, p.Name())

	_, err = NewParser("ghostscript")
	require.Error(t, err)
}
