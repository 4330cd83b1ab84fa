package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/yardfinder/internal/facility"
	"github.com/sells-group/yardfinder/internal/finder"
	"github.com/sells-group/yardfinder/internal/model"
)

var (
	nearestLat    float64
	nearestLon    float64
	nearestPlace  string
	nearestCounty string
	nearestYard   string
	nearestTop    int
	nearestData   string
	nearestJSON   bool
	nearestGeo    bool
)

// Output formats for nearest.
const (
	formatText    = "text"
	formatJSON    = "json"
	formatGeoJSON = "geojson"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest [place]",
	Short: "Find the fuel yard closest to a coordinate or place",
	Long: `Finds the nearest fuel yard to --lat/--lon, or to a place name resolved
through Nominatim (--place or a positional argument).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		q, err := nearestQuery(cmd, args)
		if err != nil {
			return err
		}
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		f, err := loadFinder(cfg, nearestData)
		if err != nil {
			return err
		}
		format := formatText
		switch {
		case nearestGeo:
			format = formatGeoJSON
		case nearestJSON:
			format = formatJSON
		}
		filter := finder.Filter{County: nearestCounty, Yard: nearestYard}
		return runNearest(ctx, os.Stdout, f, q, filter, nearestTop, format)
	},
}

// nearestQuery builds the query from flags. Coordinates win over place text.
func nearestQuery(cmd *cobra.Command, args []string) (finder.Query, error) {
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return finder.Query{}, eris.New("nearest: --lat and --lon must be given together")
	}
	if latSet {
		return finder.PointQuery(model.Coordinate{Latitude: nearestLat, Longitude: nearestLon}), nil
	}
	place := nearestPlace
	if place == "" && len(args) > 0 {
		place = args[0]
	}
	if place == "" {
		return finder.Query{}, eris.New("nearest: give --lat/--lon or a place")
	}
	return finder.TextQuery(place), nil
}

// runNearest prints the nearest facility, or the top matches when top > 1.
// The geojson format always writes a FeatureCollection of the top matches.
func runNearest(ctx context.Context, out io.Writer, f *finder.Finder, q finder.Query, filter finder.Filter, top int, format string) error {
	if top < 1 {
		top = 1
	}
	if top > 1 || format == formatGeoJSON {
		matches, err := f.RankNearest(ctx, q, filter, top)
		if err != nil {
			return err
		}
		switch format {
		case formatGeoJSON:
			data, err := facility.MarshalMatchesGeoJSON(matches)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		case formatJSON:
			return writeIndentedJSON(out, matches)
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tYARD\tCOUNTY\tADDRESS\tDISTANCE")
		for i, m := range matches {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f mi\n", i+1, m.Facility.Name, m.Facility.County, m.Facility.Address, m.RoundedMiles())
		}
		return w.Flush()
	}

	match, err := f.FindNearest(ctx, q, filter)
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeIndentedJSON(out, match)
	}
	printMatch(out, match)
	return nil
}

func printMatch(out io.Writer, m model.NearestMatch) {
	fac := m.Facility
	fmt.Fprintf(out, "Nearest fuel yard: %s (%.2f mi)\n", fac.Name, m.RoundedMiles())
	fmt.Fprintf(out, "  Address:    %s\n", fac.Address)
	if fac.County != "" {
		fmt.Fprintf(out, "  County:     %s\n", fac.County)
	}
	if fac.Phone != "" {
		fmt.Fprintf(out, "  Phone:      %s\n", fac.Phone)
	}
	if fac.Supervisor != "" {
		fmt.Fprintf(out, "  Supervisor: %s\n", fac.Supervisor)
	}
	fmt.Fprintf(out, "  Location:   %.6f, %.6f\n", fac.Latitude, fac.Longitude)
}

func writeIndentedJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := nearestCmd.Flags()
	f.Float64Var(&nearestLat, "lat", 0, "query latitude")
	f.Float64Var(&nearestLon, "lon", 0, "query longitude")
	f.StringVar(&nearestPlace, "place", "", "place name to resolve")
	f.StringVar(&nearestCounty, "county", "", "only consider yards in this county")
	f.StringVar(&nearestYard, "yard", "", "only consider yards with this name")
	f.IntVar(&nearestTop, "top", 1, "show the N closest yards")
	f.StringVar(&nearestData, "data", "", "geocoded CSV (default from config)")
	f.BoolVar(&nearestJSON, "json", false, "print JSON")
	f.BoolVar(&nearestGeo, "geojson", false, "print the matches as a GeoJSON FeatureCollection with distance_miles")
	rootCmd.AddCommand(nearestCmd)
}
