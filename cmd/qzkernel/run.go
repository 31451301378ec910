package main

import (
	"context"
	"crypto/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/kernel"
	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/manager"
	"github.com/qorzen/kernel/internal/platform"
	"github.com/qorzen/kernel/pkg/logging"
)

var (
	runConfigPaths      []string
	runPluginRoots      []string
	runShutdownDeadline time.Duration
)

func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Initialize every registered manager and block until shutdown",
		Long: `run brings up a kernel instance: constructs the platform provider,
runs initialize_all() in dependency order, discovers and loads plugins,
starts the resource sampler, then notifies systemd readiness and blocks
until SIGINT/SIGTERM. Shutdown proceeds in reverse order within
--shutdown-deadline.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	c.Flags().StringSliceVar(&runConfigPaths, "file", nil, "local-tier YAML file to load (repeatable)")
	c.Flags().StringSliceVar(&runPluginRoots, "plugin-root", nil, "plugin discovery root directory (repeatable)")
	c.Flags().DurationVar(&runShutdownDeadline, "shutdown-deadline", 30*time.Second, "shutdown budget")
	return c
}

func runRun(cmd *cobra.Command, args []string) error {
	dataDir, err := runtimeDir()
	if err != nil {
		return err
	}

	fs, err := platform.NewOSFileSystem(dataDir)
	if err != nil {
		return err
	}

	k, err := kernel.New(kernel.Options{
		Platform: platform.Provider{
			FS:  fs,
			KV:  platform.NewMemoryStorage(),
			Net: platform.NewHTTPNetwork(30 * time.Second),
			Capabilities: platform.Capabilities{
				HasFilesystem:      true,
				HasBackgroundTasks: true,
			},
		},
		Config: kernel.ConfigOptions{LocalFiles: runConfigPaths},
		Account: kernel.AccountOptions{
			Users:      noUserStore{},
			Roles:      account.NewStaticRoleStore(nil),
			SigningKey: randomSigningKey(),
		},
		Plugin: kernel.PluginOptions{Roots: runPluginRoots},
	})
	if err != nil {
		return err
	}

	s := newStartupSpinner()
	if s != nil {
		s.Start()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	startErr := k.Start(ctx)
	if s != nil {
		s.Stop()
	}
	if startErr != nil {
		return startErr
	}

	if pidErr := writePIDFile(); pidErr != nil {
		logging.Warn("cmd.run", "failed to write pid file: %v", pidErr)
	}
	defer removePIDFile()
	defer removeStatusSnapshot()

	if ok, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		logging.Warn("cmd.run", "systemd notify failed: %v", notifyErr)
	} else if ok {
		logging.Info("cmd.run", "notified systemd readiness")
	}

	stopStatus := make(chan struct{})
	go writeStatusLoop(k, time.Now(), stopStatus)
	defer close(stopStatus)

	stopWatchdog := make(chan struct{})
	go watchdogLoop(stopWatchdog)
	defer close(stopWatchdog)

	logging.Info("cmd.run", "kernel started, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("cmd.run", "shutdown signal received")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownErr := k.Shutdown(context.Background(), runShutdownDeadline)
	if shutdownErr != nil {
		if asShutdownTimeout(shutdownErr) {
			return &shutdownTimeoutError{cause: shutdownErr}
		}
		return shutdownErr
	}
	return nil
}

// newStartupSpinner shows a briandowns/spinner while the kernel reaches
// steady state, but only in a TTY — a non-interactive invocation (systemd,
// a pipe) gets plain log lines instead.
func newStartupSpinner() *spinner.Spinner {
	if !isTerminal(os.Stdout) {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " starting kernel..."
	return s
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func randomSigningKey() []byte {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return key
}

// noUserStore is the reference CLI's default account.UserStore. The CLI
// boundary never configures concrete accounts itself, so `run` boots with
// zero accounts; an embedding host that needs authentication wires its own
// UserStore through internal/kernel.Options directly.
type noUserStore struct{}

func (noUserStore) GetUser(ctx context.Context, userID string) (account.User, error) {
	return account.User{}, kernelerr.New(kernelerr.KindAuth, kernelerr.SeverityLow, "cmd.run", "no accounts configured")
}

// writeStatusLoop periodically snapshots every manager's health to
// statusFilePath() so a second `qzkernel health|status|manager` invocation
// can observe this instance without an IPC channel.
func writeStatusLoop(k *kernel.Kernel, startedAt time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	snapshot := func() {
		managers := toManagerStatuses(k.Supervisor)
		healthy := true
		for _, m := range managers {
			if m.State == string(manager.StateFailed) || m.State == string(manager.StateDegraded) {
				healthy = false
			}
		}
		snap := statusSnapshot{
			PID:         os.Getpid(),
			StartedAt:   startedAt,
			UpdatedAt:   time.Now(),
			Healthy:     healthy,
			Managers:    managers,
			PluginCount: len(k.Plugins.List()),
		}
		if err := writeStatusSnapshot(snap); err != nil {
			logging.Warn("cmd.run", "failed to write status snapshot: %v", err)
		}
	}

	snapshot()
	for {
		select {
		case <-ticker.C:
			snapshot()
		case <-stop:
			return
		}
	}
}

// watchdogLoop sends WATCHDOG=1 at half the systemd-configured interval
// for as long as the kernel is running; it is a no-op when the unit has no
// WatchdogSec (SdWatchdogEnabled returns 0).
func watchdogLoop(stop <-chan struct{}) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		case <-stop:
			return
		}
	}
}
