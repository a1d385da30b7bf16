package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antoniostano/papertutor/internal/orchestrator"
	"github.com/antoniostano/papertutor/internal/tutor"
)

var chatCmd = &cobra.Command{
	Use:   "chat <paper.pdf>",
	Short: "Discuss a paper in the terminal",
	Long: `Load a PDF and start a tutoring conversation on stdin/stdout.

Commands inside the conversation:
  /clear         forget the conversation, keep the paper
  /reset         forget the paper and the conversation
  /load <file>   load another paper (starts a new conversation)
  /quit          leave

Examples:
  papertutor chat attention.pdf
  LLM_PROVIDER=ollama LLM_MODEL=llama3.1 papertutor chat attention.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	adapter, err := newAdapter(cfg)
	if err != nil {
		return fmt.Errorf("model adapter init: %w", err)
	}
	s := tutor.NewSession("", newExtractor(int64(cfg.UploadMaxBytes), logger), adapter, tutor.Options{
		MaxPaperChars:  cfg.PaperMaxChars,
		WarnPaperChars: cfg.PaperWarnChars,
	})

	out := cmd.OutOrStdout()
	if err := loadPaper(ctx, s, args[0], out); err != nil {
		return err
	}
	return chatLoop(ctx, s, cmd.InOrStdin(), out)
}

func loadPaper(ctx context.Context, s *tutor.Session, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	info, err := s.LoadDocument(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %s: %d pages, %d characters.\n", info.Name, info.Pages, info.Chars)
	if info.LengthWarning {
		fmt.Fprintln(out, "Warning: this paper is long, answers may lose track of details.")
	}
	if info.Truncated {
		fmt.Fprintln(out, "Warning: the paper was truncated to fit the model context.")
	}
	return nil
}

// chatLoop reads one message per line until EOF, /quit or ctx ends.
func chatLoop(ctx context.Context, s *tutor.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/clear":
			if err := s.ClearConversation(); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Conversation cleared. The paper is still loaded.")
			continue
		case line == "/reset":
			s.Reset()
			fmt.Fprintln(out, "Session reset. Use /load <file> to study another paper.")
			continue
		case strings.HasPrefix(line, "/load "):
			if err := loadPaper(ctx, s, strings.TrimSpace(strings.TrimPrefix(line, "/load ")), out); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			continue
		}

		streamed := false
		reply, err := s.SubmitStream(ctx, line, func(delta string) error {
			streamed = true
			_, werr := io.WriteString(out, delta)
			return werr
		})
		if err != nil {
			if streamed {
				fmt.Fprintln(out)
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			f := orchestrator.FailureOf(err)
			fmt.Fprintf(out, "! %s: %v\n", f.Code, err)
			if errors.Is(err, tutor.ErrNotActive) {
				fmt.Fprintln(out, "Use /load <file> to load a paper first.")
			}
			continue
		}
		if !streamed {
			fmt.Fprint(out, reply)
		}
		fmt.Fprintln(out)
	}
}
