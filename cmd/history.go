package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mqttlat/internal/storage"
)

// historyCmd lists past batches from the local history store.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show summaries of previously completed batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open("")
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.List()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No batches recorded yet.")
			return nil
		}

		for _, rec := range recs {
			fmt.Printf("%s  %s  (%d iterations, %d configs)\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"), rec.ID, rec.Iterations, len(rec.Configs))
			for _, name := range rec.Configs {
				s := rec.Summaries[name]
				if s.Handshake.Count == 0 {
					fmt.Printf("    %-32s %d ok / %d failed, no valid samples\n", name, s.Successful, s.Failed)
					continue
				}
				fmt.Printf("    %-32s %d ok / %d failed, handshake mean %.2fms p95 %.2fms\n",
					name, s.Successful, s.Failed, *s.Handshake.Mean, *s.Handshake.P95)
			}
		}
		return nil
	},
}
