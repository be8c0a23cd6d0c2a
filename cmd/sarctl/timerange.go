package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTimeRangeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "timerange",
		Aliases: []string{"tr"},
		Short:   "Manage named time ranges",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List time ranges",
			RunE: func(cmd *cobra.Command, _ []string) error {
				store := a.ranges(a.logger(cmd.ErrOrStderr(), "cli"))
				names, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range names {
					tr, err := store.Get(cmd.Context(), n)
					if err != nil {
						return err
					}
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", tr.Name, tr.StartDate, tr.EndDate); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "save [name] [start] [end]",
			Short: "Save a range (dates as YYYY-MM-DD, start before end)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				store := a.ranges(a.logger(cmd.ErrOrStderr(), "cli"))
				if err := store.Save(cmd.Context(), args[0], args[1], args[2]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved time range %q\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "delete [name]",
			Short: "Delete a range",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				removed, err := a.ranges(a.logger(cmd.ErrOrStderr(), "cli")).Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "No time range %q\n", args[0])
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted time range %q\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every range",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.ranges(a.logger(cmd.ErrOrStderr(), "cli")).Clear(cmd.Context())
			},
		},
	)
	return cmd
}
