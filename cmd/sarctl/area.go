package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

func newAreaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "area",
		Short: "Manage stored areas of interest",
	}
	cmd.AddCommand(
		newAreaListCmd(a),
		newAreaAddCmd(a),
		newAreaGetCmd(a),
		newAreaDeleteCmd(a),
	)
	return cmd
}

func newAreaListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List area names in stored order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.areas(a.logger(cmd.ErrOrStderr(), "cli")).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), n); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newAreaAddCmd(a *app) *cobra.Command {
	var ring, file, description string
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Store a new area",
		Long:  "Store a new area from --ring '[[lon,lat],...]' or --geojson file holding a Polygon or Feature.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readRing(ring, file)
			if err != nil {
				return err
			}
			store := a.areas(a.logger(cmd.ErrOrStderr(), "cli"))
			if err := store.Add(cmd.Context(), args[0], r, description); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored area %q (%.2f km2)\n", strings.TrimSpace(args[0]), geom.AreaKm2(r))
			return err
		},
	}
	cmd.Flags().StringVar(&ring, "ring", "", "ring as a JSON array of [lon,lat] pairs")
	cmd.Flags().StringVar(&file, "geojson", "", "path to a GeoJSON Polygon or Feature")
	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	return cmd
}

func newAreaGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [name]",
		Short: "Show one area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			area, err := a.areas(a.logger(cmd.ErrOrStderr(), "cli")).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			bb := geom.Bounds(area.Ring)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Name:\t%s\n", area.Name)
			fmt.Fprintf(tw, "Description:\t%s\n", area.Description)
			fmt.Fprintf(tw, "Vertices:\t%d\n", len(area.Ring))
			fmt.Fprintf(tw, "Area:\t%.2f km2\n", geom.AreaKm2(area.Ring))
			fmt.Fprintf(tw, "BBox:\t%v\n", bb.Slice())
			fmt.Fprintf(tw, "Created:\t%s\n", area.Created.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(tw, "Modified:\t%s\n", area.Modified.Format("2006-01-02 15:04:05"))
			return tw.Flush()
		},
	}
}

func newAreaDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete an area; deleting a missing name is not an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.areas(a.logger(cmd.ErrOrStderr(), "cli")).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted area %q\n", args[0])
			return err
		},
	}
}

// readRing takes exactly one of an inline JSON ring or a GeoJSON file.
func readRing(inline, file string) (model.Ring, error) {
	switch {
	case inline != "" && file != "":
		return nil, apperr.InvalidArgument("ring", "use either --ring or --geojson, not both")
	case inline != "":
		var r model.Ring
		if err := json.Unmarshal([]byte(inline), &r); err != nil {
			return nil, apperr.InvalidGeometry("parse ring: %v", err)
		}
		return r, nil
	case file != "":
		raw, err := os.ReadFile(file) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, fmt.Errorf("read geojson: %w", err)
		}
		return geom.ParseGeometry(raw)
	default:
		return nil, apperr.InvalidGeometry("one of --ring or --geojson is required")
	}
}
