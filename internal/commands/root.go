package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muratovb/geowatch/internal/api"
	"github.com/muratovb/geowatch/internal/config"
	"github.com/muratovb/geowatch/internal/logging"
	"github.com/muratovb/geowatch/internal/store"
	"github.com/muratovb/geowatch/internal/syncer"
	"github.com/muratovb/geowatch/internal/timer"
	"github.com/muratovb/geowatch/internal/tracker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "geowatch",
	Short: "A geofence presence and attendance tracker",
	Long: `geowatch watches position fixes against configured work locations,
debounces entries and exits with grace timers, and records check-in and
check-out events in a local offline-first log that syncs to the attendance
server.`,
}

// app bundles the wired collaborators behind a command invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	tracker *tracker.Tracker
	syncer  *syncer.Engine
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	clock := timer.SystemClock()
	eng := syncer.New(st, senderFor(st, cfg), clock, log, cfg.SyncInterval, cfg.SyncFlex)

	tr, err := tracker.New(cfg, st, clock, log, eng)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: st, tracker: tr, syncer: eng}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.log.Sync()
}

// senderFor resolves API credentials fresh on every sync pass, so a token
// persisted mid-run is picked up without a restart.
func senderFor(st *store.Store, cfg *config.Config) syncer.SenderFunc {
	return func() (syncer.Sender, error) {
		state, err := st.LoadState()
		if err != nil {
			return nil, err
		}
		baseURL, token := config.Credentials(state, cfg)
		if token == "" {
			return nil, api.ErrAuthMissing
		}
		return api.NewClient(baseURL, token), nil
	}
}

// withApp wraps a command function to wire the application first.
func withApp(fn func(*app, *cobra.Command, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		defer a.Close()
		fn(a, cmd, args)
	}
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}
