package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/soroosh-tanzadeh/bgqueue/engine"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func renderStatuses(cmd *cobra.Command, statuses []engine.QueueStatus) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tLOCKED\tSCHEDULED\tNEXT CHECK")
	for _, s := range statuses {
		next := "-"
		if !s.NextCheck.IsZero() {
			next = s.NextCheck.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%t\t%t\t%s\n", s.Queue, s.Pending, s.Locked, s.Scheduled, next)
	}
	return tw.Flush()
}
