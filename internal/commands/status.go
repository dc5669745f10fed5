package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current presence status",
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		// Read the persisted snapshot directly so this works from a
		// separate process while the daemon owns the live timers.
		state, err := a.store.LoadState()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if !state.Enabled {
			fmt.Println("Tracking is not running")
		} else {
			fmt.Println("🛰️  Tracking is running")
		}

		if state.IsInsideRegion {
			fmt.Printf("📍 Inside region: %s\n", state.CurrentRegionID)
		} else {
			fmt.Println("📍 Outside all work locations")
		}

		if state.CheckedIn {
			since := ""
			if state.CheckInTime != nil {
				since = fmt.Sprintf(" since %s (%s)",
					state.CheckInTime.Format("15:04:05"),
					formatDuration(time.Since(*state.CheckInTime)))
			}
			fmt.Printf("✅ Checked in at %s%s\n", state.CheckedInLocationID, since)
		} else {
			fmt.Println("○ Not checked in")
		}

		now := time.Now()
		if start := state.EntryTimerStart; start != nil {
			if remaining := a.cfg.EntryGrace - now.Sub(*start); remaining > 0 {
				fmt.Printf("⏳ Entry grace: %s remaining\n", formatDuration(remaining))
			} else {
				fmt.Println("⏳ Entry grace elapsed, check-in pending")
			}
		}
		if start := state.ExitTimerStart; start != nil {
			if remaining := a.cfg.ExitGrace - now.Sub(*start); remaining > 0 {
				fmt.Printf("⏳ Exit grace: %s remaining\n", formatDuration(remaining))
			} else {
				fmt.Println("⏳ Exit grace elapsed, check-out pending")
			}
		}

		if state.OverrideActive(now) {
			fmt.Printf("🌙 Auto check-in disabled until %s\n",
				state.OverrideUntil.Format("Jan 02 15:04"))
		}

		if state.HasFix() {
			fmt.Printf("🗺️  Last fix: %.5f, %.5f at %s\n",
				state.LastLatitude, state.LastLongitude,
				state.LastFixAt.Format("15:04:05"))
		} else {
			fmt.Println("🗺️  No position fix yet")
		}

		if pending, err := a.store.UnsyncedCount(); err == nil && pending > 0 {
			fmt.Printf("📤 %d event(s) waiting for sync\n", pending)
		}
	}),
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d.Hours() >= 1 {
		return fmt.Sprintf("%.1fh", d.Hours())
	} else if d.Minutes() >= 1 {
		return fmt.Sprintf("%.0fm", d.Minutes())
	} else {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
}
