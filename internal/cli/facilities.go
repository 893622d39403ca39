package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

type facilitiesOptions struct {
	profile   profileFlags
	near      string
	lat       float64
	lng       float64
	specialty string
	emergency bool
}

func newFacilitiesCmd(root *rootOptions, build Builder) *cobra.Command {
	opts := &facilitiesOptions{}

	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "List nearby healthcare facilities",
		Long: "Resolve a location from --near, from --lat/--lng, or from your IP address, " +
			"and list the healthcare facilities around it ranked by distance and profile.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hasLat, hasLng := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if hasLat != hasLng {
				return fmt.Errorf("--lat and --lng must be given together")
			}
			if hasLat && opts.near != "" {
				return fmt.Errorf("--near cannot be combined with --lat/--lng")
			}

			app, err := build(cmd.Context(), root.offline)
			if err != nil {
				return err
			}

			session := services.NewLocatorSession(uuid.NewString(), opts.profile.profile(), geolocation.UnsupportedPositioner{}, app.Locator)
			defer session.Close()

			filters := entities.FacilityFilters{Specialty: opts.specialty, EmergencyOnly: opts.emergency}
			if _, err := session.UpdateFilters(filters); err != nil {
				return err
			}

			var snap services.LocatorSnapshot
			switch {
			case opts.near != "":
				snap, err = session.Search(cmd.Context(), services.SearchRequest{Query: opts.near})
			case hasLat:
				coord := entities.Coordinate{Lat: opts.lat, Lng: opts.lng}
				snap, err = session.RequestLocation(cmd.Context(), geolocation.ReportedPosition{Coordinate: &coord})
			default:
				snap, err = session.RequestLocation(cmd.Context(), nil)
			}
			if err != nil {
				return fmt.Errorf("find facilities: %w", err)
			}

			if root.format == formatText {
				writeLocator(cmd.OutOrStdout(), snap)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), newLocatorOutput(snap))
		},
	}

	opts.profile.register(cmd)
	cmd.Flags().StringVar(&opts.near, "near", "", "Place name or address to search around")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude of your position")
	cmd.Flags().Float64Var(&opts.lng, "lng", 0, "Longitude of your position")
	cmd.Flags().StringVar(&opts.specialty, "specialty", "", "Only facilities offering this specialty")
	cmd.Flags().BoolVar(&opts.emergency, "emergency", false, "Only facilities with emergency services")
	return cmd
}

type facilityOutput struct {
	entities.Facility
	DirectionsURL string `json:"directions_url"`
	CallURL       string `json:"call_url"`
}

type locatorOutput struct {
	services.LocatorSnapshot
	Facilities []facilityOutput `json:"facilities"`
}

func newLocatorOutput(snap services.LocatorSnapshot) locatorOutput {
	out := locatorOutput{LocatorSnapshot: snap, Facilities: make([]facilityOutput, 0, len(snap.Facilities))}
	for i := range snap.Facilities {
		f := &snap.Facilities[i]
		out.Facilities = append(out.Facilities, facilityOutput{Facility: *f, DirectionsURL: f.DirectionsURL(), CallURL: f.CallURL()})
	}
	return out
}

func writeLocator(w io.Writer, snap services.LocatorSnapshot) {
	loc := snap.Location
	if loc.Current != nil {
		fmt.Fprintf(w, "Location: %.5f, %.5f (%s)\n", loc.Current.Lat, loc.Current.Lng, loc.Source)
	}
	if loc.SearchedPlaceName != "" {
		fmt.Fprintf(w, "Place: %s\n", loc.SearchedPlaceName)
	}
	if loc.LastError != "" {
		fmt.Fprintf(w, "Note: %s\n", loc.LastError)
	}
	for _, a := range snap.Advisories {
		fmt.Fprintf(w, "Note: %s\n", a)
	}

	if len(snap.Facilities) == 0 {
		fmt.Fprintln(w, "\nNo facilities match your filters.")
		return
	}
	fmt.Fprintln(w)
	for i, f := range snap.Facilities {
		fmt.Fprintf(w, "%d. %s (%s) %.1f mi, rated %.1f\n", i+1, f.Name, f.Type, f.DistanceMiles, f.Rating)
		details := []string{f.Address, f.Phone}
		if f.EmergencyServices {
			details = append(details, "emergency services")
		}
		fmt.Fprintf(w, "   %s\n", strings.Join(nonEmpty(details), " | "))
		if len(f.Specialties) > 0 {
			fmt.Fprintf(w, "   %s\n", strings.Join(f.Specialties, ", "))
		}
	}
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
