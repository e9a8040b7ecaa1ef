// Package output provides consistent CLI output for search results and
// command status, as text on terminals and JSON for pipes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/fusionsearch/internal/search"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out  io.Writer
	json bool
}

// New creates a text Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// NewAuto creates a Writer that emits JSON when forced or when out is not
// a terminal.
func NewAuto(out io.Writer, forceJSON bool) *Writer {
	return &Writer{out: out, json: forceJSON || !IsTTY(out)}
}

// JSONMode reports whether the writer emits JSON.
func (w *Writer) JSONMode() bool {
	return w.json
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults prints a search response.
func (w *Writer) SearchResults(query string, resp *search.SearchResponse) error {
	if w.json {
		return w.JSON(resp)
	}

	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintf(w.out, "No results for %q\n", query)
		if resp.Degraded {
			w.Warning("Some sources did not answer")
		}
		return nil
	}

	header := fmt.Sprintf("%d result", resp.TotalResults)
	if resp.TotalResults != 1 {
		header += "s"
	}
	header += fmt.Sprintf(" for %q (%s, %dms", query, resp.SearchMode, resp.ProcessingTimeMs)
	if resp.Cached {
		header += ", cached"
	}
	header += ")"
	_, _ = fmt.Fprintln(w.out, header)
	if resp.Degraded {
		w.Warning("Results are partial: some sources did not answer")
	}
	w.Newline()

	for i, r := range resp.Results {
		title, kind := r.EntityID, ""
		if r.Payload != nil {
			title, kind = r.Payload.Title, r.Payload.Type
		}
		sources := make([]string, len(r.Sources))
		for j, s := range r.Sources {
			sources[j] = string(s)
		}
		_, _ = fmt.Fprintf(w.out, "%3d. %-40s %-10s %.3f  [%s]\n",
			i+1, truncate(title, 40), kind, r.BlendedScore, strings.Join(sources, ","))
		_, _ = fmt.Fprintf(w.out, "     %s\n", r.EntityID)
	}
	return nil
}

// Suggestions prints typeahead suggestions one per line.
func (w *Writer) Suggestions(resp *search.SuggestResponse) error {
	if w.json {
		return w.JSON(resp)
	}
	for _, s := range resp.Suggestions {
		if s.Type != "" {
			_, _ = fmt.Fprintf(w.out, "%s\t(%s)\n", s.Text, s.Type)
		} else {
			_, _ = fmt.Fprintln(w.out, s.Text)
		}
	}
	return nil
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
