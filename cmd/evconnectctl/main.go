// README: Operator CLI for geometry checks, manual dispatch and offline dispatch simulation.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"evconnect/internal/geo"
	"evconnect/internal/modules/agent"
	"evconnect/internal/types"
)

var rootCmd = &cobra.Command{
	Use:   "evconnectctl",
	Short: "Operator tooling for evconnect dispatch",
	Long: `evconnectctl checks distances and work areas, triggers dispatch for a
service request on a running API, and replays dispatch scenarios offline.`,
	SilenceUsage: true,
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Great-circle distance between two points and work-area containment",
	RunE:  runDistance,
}

var (
	fromFlag  string
	toFlag    string
	areasFlag string
)

func init() {
	distanceCmd.Flags().StringVar(&fromFlag, "from", "", "origin as lat,lng")
	distanceCmd.Flags().StringVar(&toFlag, "to", "", "destination as lat,lng")
	distanceCmd.Flags().StringVar(&areasFlag, "areas", "", "JSON file of work areas to test the destination against")
	_ = distanceCmd.MarkFlagRequired("from")
	_ = distanceCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(distanceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDistance(cmd *cobra.Command, _ []string) error {
	from, err := parsePoint(fromFlag)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parsePoint(toFlag)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "direct distance: %.2f miles\n", geo.DirectDistance(from, to))

	if areasFlag == "" {
		return nil
	}
	raw, err := os.ReadFile(areasFlag)
	if err != nil {
		return fmt.Errorf("read areas: %w", err)
	}
	areas, unknown, err := agent.DecodeWorkAreas(raw)
	if err != nil {
		return err
	}
	for _, tag := range unknown {
		fmt.Fprintf(out, "skipped area with unknown type %q\n", tag)
	}
	for i, a := range areas {
		fmt.Fprintf(out, "area %d %s: valid=%t contains=%t\n", i, areaName(a), a.Valid(), a.Contains(to))
	}
	return nil
}

func areaName(a geo.WorkArea) string {
	switch v := a.(type) {
	case geo.Circle:
		return "circle " + strconv.Quote(v.Name)
	case geo.Polygon:
		return "polygon " + strconv.Quote(v.Name)
	}
	return "area"
}

// parsePoint reads "lat,lng".
func parsePoint(s string) (types.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return types.Point{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("longitude: %w", err)
	}
	p := types.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return types.Point{}, fmt.Errorf("coordinates out of range: %q", s)
	}
	return p, nil
}
