package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/composite"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sarctl %s\n", Version)
			return err
		},
	}
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the registered composite strategies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, n := range composite.Names() {
				b, err := composite.New(n, composite.Options{})
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", n, b.Polarizations()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
