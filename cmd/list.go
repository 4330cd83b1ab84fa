package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/yardfinder/internal/facility"
	"github.com/sells-group/yardfinder/internal/finder"
)

var (
	listCounty   string
	listYard     string
	listData     string
	listGeoJSON  bool
	listCounties bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List geocoded fuel yards",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		f, err := loadFinder(cfg, listData)
		if err != nil {
			return err
		}
		return runList(os.Stdout, f, finder.Filter{County: listCounty, Yard: listYard}, listGeoJSON, listCounties)
	},
}

func runList(out io.Writer, f *finder.Finder, filter finder.Filter, asGeoJSON, countiesOnly bool) error {
	if countiesOnly {
		for _, c := range f.Counties() {
			fmt.Fprintln(out, c)
		}
		return nil
	}

	facilities := f.ListFacilities(filter)
	if asGeoJSON {
		data, err := facility.MarshalGeoJSON(facilities)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tYARD\tCOUNTY\tADDRESS\tLAT\tLON")
	for _, fac := range facilities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.6f\t%.6f\n", fac.ID, fac.Name, fac.County, fac.Address, fac.Latitude, fac.Longitude)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d yard(s)\n", len(facilities))
	return nil
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listCounty, "county", "", "only yards in this county")
	f.StringVar(&listYard, "yard", "", "only yards with this name")
	f.StringVar(&listData, "data", "", "geocoded CSV (default from config)")
	f.BoolVar(&listGeoJSON, "geojson", false, "print a GeoJSON FeatureCollection")
	f.BoolVar(&listCounties, "counties", false, "print the distinct counties only")
	rootCmd.AddCommand(listCmd)
}
