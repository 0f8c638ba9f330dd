package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"CardScan/internal/client"
)

func StatusCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient().QueueStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d queued=%d sent=%d failed=%d processing=%t\n",
				st.Total, st.Queued, st.Sent, st.Failed, st.Processing)
			return nil
		},
	}
}

func DetailsCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "details",
		Short: "dump every job in the queue as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newClient().QueueDetails(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func BatchCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <batch_id>",
		Short: "show the jobs of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newClient().Batch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
}

func ProcessCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "drain the queue now and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().ProcessQueue(cmd.Context())
			if errors.Is(err, client.ErrBusy) {
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}
