package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muratovb/geowatch/internal/config"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List configured work locations",
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		locations, err := config.LoadWorkLocations(a.cfg.LocationsPath)
		if err != nil {
			// Fall back to the set the tracker last persisted.
			state, stateErr := a.store.LoadState()
			if stateErr != nil {
				fmt.Printf("Error: %v\n", stateErr)
				return
			}
			locations = state.WorkLocations
		}

		if len(locations) == 0 {
			fmt.Printf("No work locations configured. Create %s with a JSON array of locations.\n",
				a.cfg.LocationsPath)
			return
		}

		fmt.Printf("%-12s %-20s %-12s %-12s %s\n", "ID", "NAME", "LATITUDE", "LONGITUDE", "RADIUS")
		fmt.Println(strings.Repeat("-", 70))
		for _, loc := range locations {
			fmt.Printf("%-12s %-20s %-12.6f %-12.6f %.0fm\n",
				loc.ID, truncate(loc.Name, 18), loc.Latitude, loc.Longitude, loc.RadiusMeters)
		}
	}),
}
