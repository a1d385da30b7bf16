package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/papertutor/internal/llm"
	"github.com/antoniostano/papertutor/internal/pdfdoc"
	"github.com/antoniostano/papertutor/internal/tutor"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, filename string, data []byte) (pdfdoc.Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return pdfdoc.Document{}, pdfdoc.ErrNotPDF
	}
	return pdfdoc.Document{Name: filename, Text: "Deep residual learning eases training.", Pages: 12, ExtractedPages: 12}, nil
}

func writePaper(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestChatLoopConversation(t *testing.T) {
	ctx := context.Background()
	s := tutor.NewSession("", stubExtractor{}, llm.NewMockAdapter(), tutor.DefaultOptions())
	var out bytes.Buffer
	require.NoError(t, loadPaper(ctx, s, writePaper(t, "resnet.pdf", "%PDF-1.5"), &out))
	assert.Contains(t, out.String(), "Loaded resnet.pdf: 12 pages")

	in := strings.NewReader("What is a residual block?\n\nAnd why does it help?\n/clear\n/quit\nignored\n")
	require.NoError(t, chatLoop(ctx, s, in, &out))

	got := out.String()
	assert.Contains(t, got, `Before we dig into "What is a residual block?"`)
	assert.Contains(t, got, `Let's take one small step on "And why does it help?"`)
	assert.Contains(t, got, "Conversation cleared")
	assert.NotContains(t, got, "ignored")
	assert.Equal(t, 1, s.Len())
}

func TestChatLoopResetAndLoad(t *testing.T) {
	ctx := context.Background()
	s := tutor.NewSession("", stubExtractor{}, llm.NewMockAdapter(), tutor.DefaultOptions())
	good := writePaper(t, "good.pdf", "%PDF-1.7")
	bad := writePaper(t, "notes.txt", "plain text")

	in := strings.NewReader(strings.Join([]string{
		"hello",
		"/load " + bad,
		"/load " + good,
		"hello again",
		"/reset",
		"/clear",
	}, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(ctx, s, in, &out))

	got := out.String()
	assert.Contains(t, got, "! session_not_active")
	assert.Contains(t, got, "Use /load <file>")
	assert.Contains(t, got, "input is not a PDF")
	assert.Contains(t, got, "Loaded good.pdf")
	assert.Contains(t, got, `Before we dig into "hello again"`)
	assert.Contains(t, got, "Session reset")
	assert.Contains(t, got, "! no document loaded")
	assert.Equal(t, tutor.StateUninitialized, s.State())
}

func TestExtractRejectsNonPDF(t *testing.T) {
	path := writePaper(t, "notes.txt", "just some notes")
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"extract", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, pdfdoc.ErrNotPDF)
}
