package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the client's previous check-ins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}
}

func runHistory(cmd *cobra.Command, opts *options) error {
	clientID, err := opts.requireClientID()
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}
	ctx, cancel := opts.context(cmd)
	defer cancel()

	checkIns, err := client.ListClientCheckIns(ctx, clientID)
	if err != nil {
		return fmt.Errorf("list check-ins: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(checkIns) == 0 {
		fmt.Fprintln(out, "No check-ins yet. The next check-in requires biometric verification.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLOCATION\tBIOMETRIC\tFIRST\tNOTES")
	for _, c := range checkIns {
		biometric := string(c.BiometricType)
		if biometric == "" {
			biometric = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			c.CheckInTime.Local().Format(time.RFC3339), c.Location, biometric, c.IsFirstCheckIn, c.Notes)
	}
	return w.Flush()
}
