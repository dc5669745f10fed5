package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muratovb/geowatch/internal/models"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Aliases: []string{"log"},
	Short:   "List recorded attendance events",
	Long:    "List attendance events from the local log, newest first, with optional filters",
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		unsyncedOnly, _ := cmd.Flags().GetBool("unsynced")
		today, _ := cmd.Flags().GetBool("today")
		since, _ := cmd.Flags().GetDuration("since")

		var events []models.AttendanceEvent
		var err error
		switch {
		case unsyncedOnly:
			events, err = a.store.UnsyncedEvents()
		case today:
			now := time.Now()
			start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			events, err = a.store.EventsInRange(start, start.AddDate(0, 0, 1))
		case since > 0:
			now := time.Now()
			events, err = a.store.EventsInRange(now.Add(-since), now)
		default:
			events, err = a.store.RecentEvents(limit)
		}
		if err != nil {
			fmt.Printf("Error fetching events: %v\n", err)
			return
		}

		if len(events) == 0 {
			fmt.Println("No events recorded yet.")
			return
		}

		fmt.Printf("%-20s %-10s %-15s %-6s %-7s %s\n", "TIME", "TYPE", "LOCATION", "AUTO", "SYNCED", "NOTES")
		fmt.Println(strings.Repeat("-", 80))

		for _, ev := range events {
			location := "-"
			if ev.LocationName != nil && *ev.LocationName != "" {
				location = *ev.LocationName
			} else if ev.LocationID != nil {
				location = *ev.LocationID
			}
			location = truncate(location, 13)

			eventType := "IN"
			if ev.EventType == models.EventCheckOut {
				eventType = "OUT"
			}

			auto := "manual"
			if ev.IsAuto {
				auto = "auto"
			}

			synced := "✗"
			if ev.Synced {
				synced = "✓"
			}

			notes := truncate(ev.Notes, 25)

			fmt.Printf("%-20s %-10s %-15s %-6s %-7s %s\n",
				ev.Timestamp.Format("2006-01-02 15:04:05"),
				eventType,
				location,
				auto,
				synced,
				notes)
		}
	}),
}

// truncate shortens s to at most max display runes, never slicing inside a
// multibyte character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	eventsCmd.Flags().IntP("limit", "n", 20, "Maximum number of events to show")
	eventsCmd.Flags().Bool("unsynced", false, "Show only events not yet synced")
	eventsCmd.Flags().Bool("today", false, "Show only today's events")
	eventsCmd.Flags().Duration("since", 0, "Show events newer than this age (e.g. 48h)")
}
