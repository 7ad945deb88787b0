package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nhle/feed2imap/internal/sync"
)

// Summary formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type feedSummary struct {
	URL        string  `json:"url"`
	Title      string  `json:"title,omitempty"`
	Entries    int     `json:"entries"`
	Skipped    int     `json:"skipped"`
	New        int     `json:"new"`
	Appended   int     `json:"appended"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

type runSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Feeds      int           `json:"feeds"`
	Failed     int           `json:"failed"`
	Appended   int           `json:"appended"`
	Results    []feedSummary `json:"results"`
}

func toRunSummary(s sync.Summary) runSummary {
	out := runSummary{
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		DryRun:     s.DryRun,
		Feeds:      len(s.Outcomes),
		Failed:     len(s.Failed()),
		Appended:   s.Appended(),
		Results:    make([]feedSummary, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		fs := feedSummary{
			URL:        o.URL,
			Title:      o.Title,
			Entries:    o.Entries,
			Skipped:    o.Skipped,
			New:        o.New,
			Appended:   o.Appended,
			DurationMS: float64(o.Duration.Milliseconds()),
		}
		if o.Err != nil {
			fs.Error = o.Err.Error()
		}
		out.Results = append(out.Results, fs)
	}
	return out
}

// WriteSummary prints s in the given format.
func WriteSummary(w io.Writer, s sync.Summary, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toRunSummary(s)); err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
		return nil
	case FormatText, "":
		return writeTextSummary(w, s)
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
}

func writeTextSummary(w io.Writer, s sync.Summary) error {
	verb := "appended"
	if s.DryRun {
		verb = "would append"
	}
	total := s.Appended()
	if s.DryRun {
		total = 0
		for _, o := range s.Outcomes {
			total += o.New
		}
	}
	_, err := fmt.Fprintf(w, "%d feeds, %d failed, %s %d messages in %s\n",
		len(s.Outcomes), len(s.Failed()), verb, total,
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	if err != nil {
		return err
	}
	for _, o := range s.Failed() {
		if _, err := fmt.Fprintf(w, "  failed: %s: %v\n", o.URL, o.Err); err != nil {
			return err
		}
	}
	return nil
}
