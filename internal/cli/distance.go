package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zatekoja/carecompanion/pkg/geo"
)

type distanceOutput struct {
	From  geo.Coordinate `json:"from"`
	To    geo.Coordinate `json:"to"`
	Miles float64        `json:"miles"`
	Km    float64        `json:"km"`
}

func newDistanceCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distance <lat1> <lng1> <lat2> <lng2>",
		Short: "Great-circle distance between two points",
		Long:  "Great-circle distance between two points. Put -- before the coordinates when the first one is negative.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]float64, len(args))
			for i, arg := range args {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid coordinate %q: %w", arg, err)
				}
				values[i] = v
			}

			from := geo.Coordinate{Lat: values[0], Lng: values[1]}
			to := geo.Coordinate{Lat: values[2], Lng: values[3]}
			out := distanceOutput{
				From:  from,
				To:    to,
				Miles: geo.RoundTenth(geo.DistanceMiles(from, to)),
				Km:    geo.RoundTenth(geo.DistanceKm(from, to)),
			}

			if root.format == formatText {
				fmt.Fprintf(cmd.OutOrStdout(), "%.1f mi (%.1f km)\n", out.Miles, out.Km)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	// Coordinates after the first positional argument may be negative
	cmd.Flags().SetInterspersed(false)
	return cmd
}
