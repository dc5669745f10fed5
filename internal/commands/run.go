package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muratovb/geowatch/internal/config"
	"github.com/muratovb/geowatch/internal/source"
	"github.com/muratovb/geowatch/internal/tracker"
	"github.com/muratovb/geowatch/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the presence tracker daemon",
	Long: `Run the tracker: reads JSON position fixes (one object per line),
arms grace timers and syncs recorded events in the background until
interrupted.

Examples:
  gpspipe -w | geowatch run              # Track fixes from stdin
  geowatch run --fixes /tmp/gps.fifo --ui # Named pipe plus live dashboard`,
	Run: withApp(func(a *app, cmd *cobra.Command, args []string) {
		locations, err := config.LoadWorkLocations(a.cfg.LocationsPath)
		if err != nil {
			// No locations file: keep whatever set was persisted earlier.
			a.log.Warn("locations file not loaded, using persisted set",
				zap.String("path", a.cfg.LocationsPath), zap.Error(err))
			locations = nil
		}

		fixesPath, _ := cmd.Flags().GetString("fixes")
		useUI, _ := cmd.Flags().GetBool("ui")
		if useUI && fixesPath == "-" {
			fmt.Println("Error: --ui needs the terminal; pass fixes via --fixes <file|fifo>")
			return
		}

		in, err := openFixStream(fixesPath)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if in != os.Stdin {
			defer in.Close()
		}

		if err := a.tracker.Start(locations, a.cfg.APIBaseURL, a.cfg.AuthToken); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go a.syncer.Run(ctx)

		readerDone := make(chan error, 1)
		go func() {
			reader := source.NewReader(in, a.log)
			readerDone <- reader.Run(ctx, a.tracker.OnPosition)
		}()

		if useUI {
			if err := tui.RunWatchTUI(watchProvider{a}, a.tracker.Events(), a.cfg.EntryGrace, a.cfg.ExitGrace); err != nil {
				a.log.Error("dashboard failed", zap.Error(err))
			}
			fmt.Println("Dashboard closed, tracking continues. Ctrl+C to stop.")
		}

		select {
		case <-ctx.Done():
		case err := <-readerDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("position stream failed", zap.Error(err))
			}
			// Stream ended but armed timers still need to fire; keep
			// running until interrupted.
			<-ctx.Done()
		}

		if err := a.tracker.Stop(); err != nil {
			a.log.Error("failed to stop tracker cleanly", zap.Error(err))
		}
	}),
}

// watchProvider adapts the wired app to the dashboard.
type watchProvider struct{ a *app }

func (p watchProvider) Status() tracker.Snapshot { return p.a.tracker.Status() }
func (p watchProvider) UnsyncedCount() (int64, error) { return p.a.store.UnsyncedCount() }

func openFixStream(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fix stream: %w", err)
	}
	return f, nil
}

func init() {
	runCmd.Flags().String("fixes", "-", "Position fix stream: '-' for stdin, or a file/fifo path")
	runCmd.Flags().Bool("ui", false, "Show the live dashboard while tracking")
}
