package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeusync/warden/internal/core/sequence"
)

func newDetectionsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "detections",
		Short: "List the bundled detections with their effective chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, cleanup, err := bootstrap(*configPath, sequence.NewManualClock(0), nil)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			for _, d := range engine.Manager.Detections() {
				bp := d.Blueprint()
				kinds := make([]string, 0, len(bp.Kinds()))
				for _, k := range bp.Kinds() {
					kinds = append(kinds, string(k))
				}
				fmt.Fprintf(out, "%-10s %-8s steps=%d kinds=%s  %s\n",
					d.ID(), d.Version(), bp.Len(), strings.Join(kinds, ","), d.Name())
			}
			return nil
		},
	}
}
