package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/freezedry/internal/config"
	"github.com/nao1215/freezedry/internal/database"
	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/report"
)

// defaultHistoryLimit is the number of captures listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List past captures",
		Long: `History lists the captures recorded by 'freezedry archive', newest first.

Every capture is recorded, including failed ones, with its size, content
digest, resource counts and unresolved subresources.

Examples:
  # List recent captures
  freezedry history

  # List captures of one page
  freezedry history https://example.com/

  # Show one capture in detail
  freezedry history --id 0b6f6f62-6f0e-4a58-9f55-1e4d2f9d3c11

  # Output as JSON
  freezedry history --json https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of captures to list (0 for all)")
	cmd.Flags().StringP("id", "i", "",
		"Show the capture with this ID")
	cmd.Flags().String("cache-dir", config.XDGCacheDir(),
		"Directory of the response cache and capture history")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")

	return cmd
}

type historyOptions struct {
	url      string
	id       string
	limit    int
	cacheDir string
	json     bool
	markdown bool
	verbose  bool
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var opts historyOptions
	var err error
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if opts.id, err = cmd.Flags().GetString("id"); err != nil {
		return err
	}
	if opts.cacheDir, err = cmd.Flags().GetString("cache-dir"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return config.ErrConflictingReportFormats
	}
	opts.verbose = getVerboseFlag(cmd)
	if len(args) == 1 {
		if opts.url, err = normalizeTarget(args[0]); err != nil {
			return err
		}
	}

	return runHistory(cmd.Context(), opts, cmd.OutOrStdout())
}

func runHistory(ctx context.Context, opts historyOptions, out io.Writer) error {
	if _, err := os.Stat(filepath.Join(opts.cacheDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No captures recorded yet.")
		fmt.Fprintln(out, "\nUse 'freezedry archive <url>' to archive a page.")
		return nil
	}

	opt := database.DefaultOptions()
	opt.CreateIfNotExists = false
	db, err := database.Open(opts.cacheDir, opt)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if opts.id != "" {
		c, err := db.GetCapture(ctx, opts.id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("no capture with ID %s", opts.id)
		}
		_, err = historyWriter(opts, out).Write(c)
		return err
	}

	captures, err := db.ListCaptures(ctx, opts.url, opts.limit)
	if err != nil {
		return err
	}
	if opts.json || opts.markdown {
		_, err = historyWriter(opts, out).WriteAll(captures)
		return err
	}
	return listCaptures(out, opts.url, captures)
}

func historyWriter(opts historyOptions, out io.Writer) report.Writer {
	switch {
	case opts.json:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case opts.markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(true))
	}
}

// listCaptures prints one line per capture.
func listCaptures(out io.Writer, url string, captures []*model.Capture) error {
	if len(captures) == 0 {
		if url != "" {
			fmt.Fprintf(out, "No captures found for %s\n", url)
		} else {
			fmt.Fprintln(out, "No captures recorded yet.")
		}
		fmt.Fprintln(out, "\nUse 'freezedry archive <url>' to archive a page.")
		return nil
	}

	if url != "" {
		fmt.Fprintf(out, "Captures of %s (%d):\n\n", url, len(captures))
	} else {
		fmt.Fprintf(out, "Captures (%d):\n\n", len(captures))
	}
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-10s  %s\n", "ID", "Date", "Size", "Status", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, c := range captures {
		size := "-"
		if c.Succeeded() {
			size = humanize.Bytes(uint64(c.Bytes)) //nolint:gosec // sizes are never negative
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-10s  %s\n",
			c.ID,
			c.StartedAt.Local().Format("2006-01-02 15:04:05"),
			size,
			captureStatus(c),
			c.URL,
		)
	}
	fmt.Fprintln(out, "\nUse 'freezedry history --id <id>' to see the details of a capture.")
	return nil
}

func captureStatus(c *model.Capture) string {
	switch {
	case !c.Succeeded():
		return "failed"
	case len(c.Failures) > 0:
		return fmt.Sprintf("partial(%d)", len(c.Failures))
	default:
		return "complete"
	}
}
