package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/planner"
)

// queryFlags name the region and dates shared by preview, composite and export.
type queryFlags struct {
	area      string
	ring      string
	geojson   string
	start     string
	end       string
	timeRange string
	orbit     string
}

func (f *queryFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.area, "area", "", "stored area name")
	fs.StringVar(&f.ring, "ring", "", "ring as a JSON array of [lon,lat] pairs")
	fs.StringVar(&f.geojson, "geojson", "", "path to a GeoJSON Polygon or Feature")
	fs.StringVar(&f.start, "start", "", "start date YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "end date YYYY-MM-DD (exclusive)")
	fs.StringVar(&f.timeRange, "timerange", "", "stored time range name; overrides --start/--end")
	fs.StringVar(&f.orbit, "orbit", "", "orbit pass filter: ASCENDING or DESCENDING")
}

func (a *app) query(cmd *cobra.Command, f queryFlags) (planner.Query, error) {
	ctx := cmd.Context()
	log := a.logger(cmd.ErrOrStderr(), "cli")
	q := planner.Query{
		StartDate: f.start,
		EndDate:   f.end,
		OrbitPass: model.OrbitPass(strings.ToUpper(strings.TrimSpace(f.orbit))),
		Area:      strings.TrimSpace(f.area),
	}
	if f.ring != "" || f.geojson != "" {
		r, err := readRing(f.ring, f.geojson)
		if err != nil {
			return planner.Query{}, err
		}
		q.Ring = r
	} else if q.Area != "" {
		area, err := a.areas(log).Get(ctx, q.Area)
		if err != nil {
			return planner.Query{}, err
		}
		q.Ring = area.Ring
	} else {
		return planner.Query{}, apperr.InvalidGeometry("one of --area, --ring or --geojson is required")
	}
	if name := strings.TrimSpace(f.timeRange); name != "" {
		tr, err := a.ranges(log).Get(ctx, name)
		if err != nil {
			return planner.Query{}, err
		}
		q.StartDate, q.EndDate = tr.StartDate, tr.EndDate
	}
	return q, nil
}

func newPreviewCmd(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Count matching items and estimate the download size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.query(cmd, f)
			if err != nil {
				return err
			}
			svcs, err := a.services(cmd.Context(), a.logger(cmd.ErrOrStderr(), "cli"))
			if err != nil {
				return err
			}
			defer func() { _ = svcs.close() }()

			pv, err := svcs.planner.Preview(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				model.QueryPreview
				BBox []float64 `json:"bbox"`
			}{pv, pv.BBox.Slice()})
		},
	}
	f.bind(cmd)
	return cmd
}

func newCompositeCmd(a *app) *cobra.Command {
	var (
		f       queryFlags
		tiles   bool
		stats   bool
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "composite",
		Short: "Build the composite and optionally fetch a tile URL and statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, err := a.query(cmd, f)
			if err != nil {
				return err
			}
			svcs, err := a.services(ctx, a.logger(cmd.ErrOrStderr(), "cli"))
			if err != nil {
				return err
			}
			defer func() { _ = svcs.close() }()

			res, err := svcs.planner.Execute(ctx, q)
			if errors.Is(err, apperr.ErrNoData) {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "No data: %v\n", err)
				return err
			}
			if err != nil {
				return err
			}
			out := map[string]any{
				"strategy":     res.Strategy,
				"bands":        res.Bands,
				"source_count": res.SourceCount,
				"created":      res.Created,
			}
			if refresh {
				if err := svcs.planner.Forget(ctx, res, q.Ring); err != nil {
					return err
				}
			}
			if tiles {
				u, err := svcs.planner.TileURL(ctx, res)
				if err != nil {
					return err
				}
				out["tile_url"] = u
			}
			if stats {
				st, err := svcs.planner.Statistics(ctx, res, q.Ring)
				if err != nil {
					return err
				}
				out["stats"] = st
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&tiles, "tiles", false, "request a map tile URL")
	cmd.Flags().BoolVar(&stats, "stats", false, "compute per-band statistics in dB")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached tile URLs and statistics")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		f           queryFlags
		folder      string
		description string
		physical    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Submit the composite as a GeoTIFF export task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, err := a.query(cmd, f)
			if err != nil {
				return err
			}
			svcs, err := a.services(ctx, a.logger(cmd.ErrOrStderr(), "cli"))
			if err != nil {
				return err
			}
			defer func() { _ = svcs.close() }()

			res, err := svcs.planner.Execute(ctx, q)
			if errors.Is(err, apperr.ErrNoData) {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "No data: %v\n", err)
				return err
			}
			if err != nil {
				return err
			}
			h, err := svcs.planner.ExportImage(ctx, res, q.Ring, planner.ExportOptions{
				Description: description,
				Folder:      folder,
				Area:        q.Area,
				StartDate:   q.StartDate,
				EndDate:     q.EndDate,
				Physical:    physical,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), h)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&folder, "folder", "", "destination folder (default "+planner.ImageFolder+")")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().BoolVar(&physical, "physical", false, "export dB values instead of display bytes")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
