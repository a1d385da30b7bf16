package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal, valid PDF with one Helvetica text line per page.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	total := 3 + 2*len(pages)
	offsets := make([]int, total+1)
	obj := func(id int, body string) {
		offsets[id] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		pageID := 4 + 2*i
		contentID := pageID + 1
		obj(pageID, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentID))
		stream := fmt.Sprintf("BT\n/F1 12 Tf\n72 720 Td\n(%s) Tj\nET\n", text)
		obj(contentID, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total+1)
	buf.WriteString("0000000000 65535 f \n")
	for id := 1; id <= total; id++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)
	return buf.Bytes()
}

func TestExtractReturnsPageText(t *testing.T) {
	data := buildPDF(t, "Attention Is All You Need", "The Transformer uses self-attention")

	doc, err := NewExtractor().Extract(context.Background(), "paper.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", doc.Name)
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, 2, doc.ExtractedPages)
	assert.Contains(t, doc.Text, "Attention Is All You Need")
	assert.Contains(t, doc.Text, "self-attention")
	assert.Contains(t, doc.Text, PageSeparator)
	assert.Less(t, strings.Index(doc.Text, "Attention Is"), strings.Index(doc.Text, "Transformer"))
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "empty.pdf", nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "notes.txt", []byte("just some notes"))
	require.ErrorIs(t, err, ErrNotPDF)

	_, err = NewExtractor().Extract(context.Background(), "padded.pdf", append([]byte("junk\n"), buildPDF(t, "hello")...))
	require.ErrorIs(t, err, ErrNotPDF)
}

func TestExtractRejectsOversizedInput(t *testing.T) {
	data := buildPDF(t, "hello")
	_, err := NewExtractor(WithMaxBytes(16)).Extract(context.Background(), "big.pdf", data)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestExtractFailsOnCorruptPDF(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer garbage")
	_, err := NewExtractor().Extract(context.Background(), "broken.pdf", data)
	require.Error(t, err)
}

func TestExtractFailsWithoutText(t *testing.T) {
	data := buildPDF(t, "")
	_, err := NewExtractor().Extract(context.Background(), "blank.pdf", data)
	require.ErrorIs(t, err, ErrNoText)
}

func TestExtractHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor().Extract(ctx, "paper.pdf", buildPDF(t, "hello"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCleanPageText(t *testing.T) {
	in := "Title  line \r\n\r\n\r\n\r\nBody\ttext\nPage 3 of 10\n"
	got := cleanPageText(in)
	assert.Equal(t, "Title line\n\nBody\ttext", got)
}
