// Package status renders pending and candidate changes.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"tfvc/internal/itemspec"
	"tfvc/internal/option"
	"tfvc/internal/vc"
)

// Result is what the status command found in scope.
type Result struct {
	Pending    []vc.PendingChange
	Candidates []vc.CandidateChange
	// ShowCandidates is set when candidates were requested.
	ShowCandidates bool
}

// HasChanges reports whether anything was found.
func (r *Result) HasChanges() bool {
	return len(r.Pending) > 0 || len(r.Candidates) > 0
}

// JSONOutput is the JSON structure for status results.
type JSONOutput struct {
	Pending    []JSONChange `json:"pending"`
	Candidates []JSONChange `json:"candidates,omitempty"`
	Summary    Summary      `json:"summary"`
}

// JSONChange is one change in JSON output.
type JSONChange struct {
	ServerItem       string `json:"serverItem"`
	LocalItem        string `json:"localItem,omitempty"`
	SourceServerItem string `json:"sourceServerItem,omitempty"`
	Change           string `json:"change"`
	Lock             string `json:"lock,omitempty"`
	DeletionID       int    `json:"deletionId,omitempty"`
	ItemID           int64  `json:"itemId,omitempty"`
	Folder           bool   `json:"folder,omitempty"`
}

// Summary contains counts for the JSON output.
type Summary struct {
	PendingCount   int `json:"pendingCount"`
	CandidateCount int `json:"candidateCount"`
}

// WriteOutput writes the status result in the given format.
func WriteOutput(w io.Writer, result *Result, format option.OutputFormat) error {
	switch format {
	case option.FormatDetailed:
		return writeDetailed(w, result)
	case option.FormatJSON:
		return writeJSON(w, result)
	default:
		return writeBrief(w, result)
	}
}

// writeBrief prints a table of name, change and local path.
func writeBrief(w io.Writer, result *Result) error {
	if !result.HasChanges() {
		fmt.Fprintln(w, "There are no pending changes.")
		return nil
	}

	if len(result.Pending) > 0 {
		if err := writeTable(w, result.Pending); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d change(s)\n", len(result.Pending))
	} else {
		fmt.Fprintln(w, "There are no pending changes.")
	}

	if result.ShowCandidates && len(result.Candidates) > 0 {
		fmt.Fprintln(w, "\nDetected changes:")
		changes := make([]vc.PendingChange, len(result.Candidates))
		for i, c := range result.Candidates {
			changes[i] = c.PendingChange
		}
		if err := writeTable(w, changes); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d detected change(s)\n", len(result.Candidates))
	}
	return nil
}

func writeTable(w io.Writer, changes []vc.PendingChange) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "File name\tChange\tLocal path")
	fmt.Fprintln(tw, "---------\t------\t----------")
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", displayName(c), c.ChangeType, c.LocalItem)
	}
	return tw.Flush()
}

func displayName(c vc.PendingChange) string {
	name := itemspec.ServerName(c.ServerItem)
	if c.IsFolder {
		name += "/"
	}
	return name
}

// writeDetailed prints one block per change.
func writeDetailed(w io.Writer, result *Result) error {
	if !result.HasChanges() {
		fmt.Fprintln(w, "There are no pending changes.")
		return nil
	}
	for _, c := range result.Pending {
		writeBlock(w, c)
	}
	if result.ShowCandidates {
		for _, c := range result.Candidates {
			writeBlock(w, c.PendingChange)
		}
	}
	fmt.Fprintf(w, "%d change(s), %d detected change(s)\n", len(result.Pending), len(result.Candidates))
	return nil
}

func writeBlock(w io.Writer, c vc.PendingChange) {
	fmt.Fprintln(w, c.ServerItem)
	fmt.Fprintf(w, "  Change     : %s\n", c.ChangeType)
	if c.LocalItem != "" {
		fmt.Fprintf(w, "  Local item : %s\n", c.LocalItem)
	}
	if c.SourceServerItem != "" {
		fmt.Fprintf(w, "  Source item: %s\n", c.SourceServerItem)
	}
	if c.LockLevel != vc.LockNone {
		fmt.Fprintf(w, "  Lock       : %s\n", c.LockLevel)
	}
	if c.DeletionID != 0 {
		fmt.Fprintf(w, "  Deletion ID: %d\n", c.DeletionID)
	}
	fmt.Fprintln(w)
}

// writeJSON outputs structured JSON.
func writeJSON(w io.Writer, result *Result) error {
	output := JSONOutput{
		Pending: make([]JSONChange, 0, len(result.Pending)),
		Summary: Summary{
			PendingCount:   len(result.Pending),
			CandidateCount: len(result.Candidates),
		},
	}
	for _, c := range result.Pending {
		output.Pending = append(output.Pending, toJSON(c))
	}
	if result.ShowCandidates {
		output.Candidates = make([]JSONChange, 0, len(result.Candidates))
		for _, c := range result.Candidates {
			output.Candidates = append(output.Candidates, toJSON(c.PendingChange))
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func toJSON(c vc.PendingChange) JSONChange {
	out := JSONChange{
		ServerItem:       c.ServerItem,
		LocalItem:        c.LocalItem,
		SourceServerItem: c.SourceServerItem,
		Change:           c.ChangeType.String(),
		DeletionID:       c.DeletionID,
		ItemID:           c.ItemID,
		Folder:           c.IsFolder,
	}
	if c.LockLevel != vc.LockNone {
		out.Lock = c.LockLevel.String()
	}
	return out
}
