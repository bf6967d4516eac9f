package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/anybase/cli/internal/ui"
	"github.com/satishbabariya/anybase/config"
	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/internal/debug"
	"github.com/satishbabariya/anybase/telemetry"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a driver connected and re-apply the config file on change",
		Long: `Keep a driver running, print state changes and re-apply the
configuration whenever the config file changes. With --metrics-addr the
dispatcher metrics are served at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadValid(cmd)
			if err != nil {
				return err
			}
			if cfg.File == "" {
				return errors.New("no config file found; create one with anybase init")
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			s := &session{opts: opts, cmd: cmd, rec: telemetry.Default()}
			defer s.close()

			if cfg.MetricsAddr != "" {
				srv := serveMetrics(cfg.MetricsAddr)
				defer srv.Shutdown(context.Background())
			}

			w, err := config.NewWatcher(cfg.File, s.reload)
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			ui.PrintInfo("watching %s", cfg.File)
			s.report(ctx, time.Second)
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// session owns the driver that watch keeps alive across reloads.
type session struct {
	opts *globalOptions
	cmd  *cobra.Command
	rec  telemetry.Recorder

	mu  sync.Mutex
	cfg *config.Config
	d   *driver.Base
}

// reload loads the configuration again. An unchanged target only updates
// the log level; changed engine settings replace the driver; anything else
// re-Sets it.
func (s *session) reload() error {
	next, err := s.opts.loadValid(s.cmd)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil && s.cfg.SameTarget(next) && s.cfg.SameEngine(next) {
		s.cfg = next
		return nil
	}

	if s.d == nil || s.cfg == nil || !s.cfg.SameEngine(next) {
		d, err := next.NewDriver(s.rec)
		if err != nil {
			return err
		}
		if s.d != nil {
			s.d.UnSet()
		}
		s.d = d
	}

	if err := next.Apply(s.d); err != nil {
		return err
	}
	s.cfg = next
	ui.PrintInfo("connected to %s", describeTarget(s.d))
	return nil
}

func (s *session) current() *driver.Base {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d
}

// report prints the driver state whenever it changes until ctx ends.
func (s *session) report(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := dispatch.State(-1)
	for {
		if d := s.current(); d != nil {
			if st := d.GetLastState(); st != last {
				important, common := d.Pending()
				fmt.Fprintf(ui.Out, "%s %s (pending %d/%d)\n", time.Now().Format(time.TimeOnly), ui.StateBadge(st), important, common)
				last = st
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d != nil {
		s.d.UnSet()
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	ui.PrintInfo("metrics on http://%s/metrics", addr)
	return srv
}
