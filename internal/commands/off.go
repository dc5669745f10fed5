package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Check out and stay off for the rest of the day",
	Long: `Check out immediately (when checked in) and suppress automatic
check-ins until the next midnight. Useful when leaving early or working
from home while still near the office.`,
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		if err := a.tracker.ManualOverrideOff(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		state, err := a.store.LoadState()
		if err == nil && state.OverrideUntil != nil {
			fmt.Printf("🌙 Off for the day. Auto check-in resumes %s\n",
				state.OverrideUntil.Format("Jan 02 15:04"))
		} else {
			fmt.Println("🌙 Off for the day")
		}
		pushPending(a)
	}),
}
