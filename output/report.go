// Package output formats the result of gitum operations as either
// human-readable text or machine-readable JSON, selected by the --json
// persistent flag.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roasbeef/gitum/diff"
	"github.com/roasbeef/gitum/gitumerr"
	"github.com/roasbeef/gitum/orchestrator"
)

// Result is the generic shape every command reports: a short message on
// success, or a typed error.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   *ErrorOutput `json:"error,omitempty"`
}

// ErrorOutput is the JSON-safe projection of a gitumerr.Error.
type ErrorOutput struct {
	Category  string `json:"category"`
	Message   string `json:"message"`
	Persisted bool   `json:"persisted"`
}

// FormatResult writes a Result as text or JSON and returns err, so a
// failed operation still exits non-zero after its report is written.
func FormatResult(w io.Writer, jsonOut bool, message string, err error) error {
	res := Result{OK: err == nil, Message: message}

	if err != nil {
		res.Error = toErrorOutput(err)
	}

	if jsonOut {
		if werr := writeJSON(w, res); werr != nil {
			return werr
		}

		return err
	}

	if err != nil {
		fmt.Fprintf(w, "error: %s\n", err)

		return err
	}

	if message != "" {
		fmt.Fprintln(w, message)
	}

	return nil
}

func toErrorOutput(err error) *ErrorOutput {
	var e *gitumerr.Error
	if ge, ok := err.(*gitumerr.Error); ok {
		e = ge
	} else {
		return &ErrorOutput{Message: err.Error()}
	}

	return &ErrorOutput{
		Category:  string(e.Category),
		Message:   e.Message,
		Persisted: e.Persisted,
	}
}

// StatusOutput is the JSON/text projection of orchestrator.StatusReport.
type StatusOutput struct {
	UpToDate    bool           `json:"up_to_date"`
	NewCommits  bool           `json:"new_commits"`
	ModifiedSet bool           `json:"modified_set"`
	Commits     []CommitOutput `json:"commits,omitempty"`
	Files       []string       `json:"files,omitempty"`
	Insertions  int            `json:"insertions,omitempty"`
	Deletions   int            `json:"deletions,omitempty"`
}

// CommitOutput is the JSON projection of a git.CommitInfo.
type CommitOutput struct {
	Hash    string `json:"hash"`
	Short   string `json:"short"`
	Subject string `json:"subject"`
	Author  string `json:"author"`
}

// FormatStatus writes a StatusReport as text or JSON.
func FormatStatus(w io.Writer, jsonOut bool, report orchestrator.StatusReport) error {
	if jsonOut {
		return writeJSON(w, toStatusOutput(report))
	}

	switch {
	case report.UpToDate:
		fmt.Fprintln(w, "up to date")
	case report.NewCommits:
		fmt.Fprintf(w, "%d new commit(s) on the rebased branch:\n", len(report.Commits))
		for _, c := range report.Commits {
			fmt.Fprintf(w, "  %s %s\n", c.ShortHash, c.Subject)
		}
	case report.ModifiedSet:
		fmt.Fprintln(w, "the rebased branch's history has been modified:")

		files, added, deleted := summarizeDiff(report.Diff)
		for _, f := range files {
			fmt.Fprintf(w, "  %s\n", f)
		}
		fmt.Fprintf(w, "%d insertion(s), %d deletion(s)\n", added, deleted)
	}

	return nil
}

func toStatusOutput(report orchestrator.StatusReport) StatusOutput {
	out := StatusOutput{
		UpToDate:    report.UpToDate,
		NewCommits:  report.NewCommits,
		ModifiedSet: report.ModifiedSet,
	}

	for _, c := range report.Commits {
		out.Commits = append(out.Commits, CommitOutput{
			Hash:    c.Hash,
			Short:   c.ShortHash,
			Subject: c.Subject,
			Author:  c.Author,
		})
	}

	if report.ModifiedSet {
		out.Files, out.Insertions, out.Deletions = summarizeDiff(report.Diff)
	}

	return out
}

// summarizeDiff parses a unified diff produced by git.Executor.Diff into
// the list of touched paths and overall insertion/deletion counts. A
// parse failure (the diff isn't well-formed unified diff text) degrades
// to an empty summary rather than surfacing an error from a status call.
func summarizeDiff(diffText string) (files []string, added, deleted int) {
	parsed, err := diff.Parse(diffText)
	if err != nil {
		return nil, 0, 0
	}

	for f := range parsed.Files() {
		files = append(files, f.Path())
	}

	added, deleted = parsed.Stats()

	return files, added, deleted
}

// ProgressOutput reports a single step of a merge/pull run.
type ProgressOutput struct {
	Message string `json:"message"`
}

// FormatProgress writes a single progress line, honoring jsonOut.
func FormatProgress(w io.Writer, jsonOut bool, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	if jsonOut {
		_ = writeJSON(w, ProgressOutput{Message: msg})

		return
	}

	fmt.Fprintln(w, msg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
