package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push unsynced events to the server now",
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		pending, err := a.store.UnsyncedCount()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if pending == 0 {
			fmt.Println("Nothing to sync.")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result, err := a.syncer.RunPass(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		fmt.Printf("📤 Synced %d event(s)", result.Synced)
		if result.Failed > 0 {
			fmt.Printf(", %d failed (will retry later)", result.Failed)
		}
		fmt.Println()
	}),
}
