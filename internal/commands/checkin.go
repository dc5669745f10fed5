package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin [location-id]",
	Short: "Check in manually",
	Long: `Record a manual check-in at the last known position. The location
defaults to the region you are currently inside.

Examples:
  geowatch checkin              # Check in at the current region
  geowatch checkin hq --note "forgot my phone earlier"`,
	Args: cobra.MaximumNArgs(1),
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		locationID := ""
		if len(args) > 0 {
			locationID = args[0]
		}
		note, _ := cmd.Flags().GetString("note")

		if err := a.tracker.ManualCheckIn(locationID, note); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Println("✅ Checked in")
		pushPending(a)
	}),
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Check out manually",
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		note, _ := cmd.Flags().GetString("note")

		if err := a.tracker.ManualCheckOut(note); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Println("⏹️  Checked out")
		pushPending(a)
	}),
}

// pushPending runs one sync pass so a manual action reaches the server
// before the command exits. Failures are fine, the daemon's engine will
// retry.
func pushPending(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := a.syncer.RunPass(ctx)
	if err != nil || result.Retry() {
		fmt.Println("📤 Event recorded locally; sync will retry in the background")
		return
	}
	if result.Synced > 0 {
		fmt.Println("📤 Synced to server")
	}
}

func init() {
	checkinCmd.Flags().String("note", "", "Note to attach to the event")
	checkoutCmd.Flags().String("note", "", "Note to attach to the event")
}
