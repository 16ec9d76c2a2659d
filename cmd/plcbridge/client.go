package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danmuck/plcbridge/internal/config"
	"github.com/danmuck/plcbridge/internal/monitor"
	"github.com/danmuck/plcbridge/internal/observability"
	"github.com/danmuck/plcbridge/internal/protocol/frame"
	"github.com/danmuck/plcbridge/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// clientRun holds the flag overrides for one client invocation.
type clientRun struct {
	addr  string
	count int
	sets  []string
	print bool
}

func clientCmd(opts *rootOptions) *cobra.Command {
	run := &clientRun{}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a PLC and exchange records",
		Long: `Connect to a PLC and exchange records at the configured rate.

Each cycle sends the template record, with any --set overrides applied,
and waits for the reply. The session reconnects with backoff when the
link drops; the loop stops when reconnects are exhausted, --count cycles
have completed, or the process is interrupted.`,
		Example: `  plcbridge client --addr 192.168.0.10:502 --set motor_speed=1500 --set enabled=true
  plcbridge client -c loopback.toml --count 100 --print`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if run.addr != "" {
				cfg.Client.Session.Address = run.addr
			}
			return runClient(cmd.Context(), cfg, run, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&run.addr, "addr", "a", "", "PLC address (host:port), overrides client.address")
	cmd.Flags().IntVarP(&run.count, "count", "n", 0, "Stop after this many cycles (0 runs until interrupted)")
	cmd.Flags().StringArrayVar(&run.sets, "set", nil, "Set a template field, name=value (repeatable)")
	cmd.Flags().BoolVarP(&run.print, "print", "p", false, "Print every reply")

	return cmd
}

// clientStatus is the /status payload of a running client.
type clientStatus struct {
	Session    session.Stats           `json:"session"`
	Connection monitor.ConnectionStats `json:"connection"`
	Healthy    bool                    `json:"healthy"`
}

func runClient(ctx context.Context, cfg config.Config, run *clientRun, out io.Writer) error {
	s, err := config.BuildSchema(cfg.Schema)
	if err != nil {
		return err
	}
	tmpl := frame.New(s)
	if err := applyAssignments(tmpl, run.sets); err != nil {
		return err
	}

	client, err := session.NewClient(cfg.Client.Session, tmpl)
	if err != nil {
		return err
	}
	defer client.Close()

	var limiter *monitor.RateLimiter
	if cfg.Client.RateHz > 0 {
		if limiter, err = monitor.NewRateLimiter(cfg.Client.RateHz); err != nil {
			return err
		}
	}
	freq := monitor.NewFrequencyMonitor(5 * time.Second)
	timer := monitor.NewLoopTimer()
	connMon := monitor.NewConnectionMonitor(cfg.Client.AlertThreshold)
	dog := monitor.NewWatchdog(cfg.Client.Watchdog)
	var history *monitor.DataLogger
	if cfg.Client.LogEntries > 0 {
		history = monitor.NewDataLogger(cfg.Client.LogEntries)
	}

	ctx, cancel := context.WithCancel(ctx)
	adminDone := startAdmin(ctx, cfg.Admin.Listen, "plcbridge-client", func() any {
		return clientStatus{
			Session:    client.Stats(),
			Connection: connMon.Stats(),
			Healthy:    dog.Healthy(),
		}
	})
	defer func() {
		cancel()
		<-adminDone
	}()

	if err := client.ConnectRetry(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	dog.Kick()

	loopErr := clientLoop(ctx, client, run, out, clientLoopDeps{
		limiter: limiter,
		freq:    freq,
		timer:   timer,
		connMon: connMon,
		dog:     dog,
		history: history,
	})

	if stats, ok := timer.Stats(); ok {
		fmt.Fprintf(out, "cycles: %s\n", stats)
	}
	cs := connMon.Stats()
	fmt.Fprintf(out, "exchanges: %d ok, %d failed (%.1f%% success)\n", cs.Successful, cs.Failed, cs.SuccessRate)

	if history != nil && cfg.Client.LogFile != "" {
		if err := history.SaveFile(cfg.Client.LogFile); err != nil {
			log.Error().Err(err).Str("path", cfg.Client.LogFile).Msg("client.history save failed")
			if loopErr == nil {
				loopErr = err
			}
		} else {
			log.Info().Int("entries", history.Len()).Str("path", cfg.Client.LogFile).Msg("client.history saved")
		}
	}
	return loopErr
}

type clientLoopDeps struct {
	limiter *monitor.RateLimiter
	freq    *monitor.FrequencyMonitor
	timer   *monitor.LoopTimer
	connMon *monitor.ConnectionMonitor
	dog     *monitor.Watchdog
	history *monitor.DataLogger
}

func clientLoop(ctx context.Context, client *session.Client, run *clientRun, out io.Writer, d clientLoopDeps) error {
	for cycle := 0; run.count == 0 || cycle < run.count; cycle++ {
		if ctx.Err() != nil {
			return nil
		}
		d.dog.Check()

		d.timer.Start()
		reply, err := client.Exchange(ctx, client.Template())
		d.timer.Stop()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.connMon.RecordFailure(err)
			if !errors.Is(err, session.ErrNoData) && client.State() != session.StateConnected {
				return err
			}
			log.Warn().Err(err).Int("cycle", cycle).Msg("client.loop exchange failed")
		} else {
			d.connMon.RecordSuccess()
			d.dog.Kick()
			if d.history != nil {
				d.history.Log(reply.Values())
			}
			if run.print {
				fmt.Fprintf(out, "rx %s\n", reply)
			}
			log.Debug().Stringer("rx", reply).Int("cycle", cycle).Msg("client.loop reply")
		}
		d.freq.LogIfReady("client.loop exchange rate")

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
	}
	return nil
}

// applyAssignments parses name=value pairs against the template's schema.
func applyAssignments(f *frame.DataFrame, assignments []string) error {
	s := f.Schema()
	for _, a := range assignments {
		name, raw, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want name=value", a)
		}
		name = strings.TrimSpace(name)
		spec, ok := s.Lookup(name)
		if !ok {
			return fmt.Errorf("invalid --set %q: %w", a, frame.ErrUnknownField)
		}
		v, err := spec.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid --set %q: %w", a, err)
		}
		if err := f.SetValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

// startAdmin serves the admin router on addr until ctx ends. The returned
// channel closes once the listener has stopped; it is closed immediately when
// addr is empty.
func startAdmin(ctx context.Context, addr, service string, status observability.StatusFunc) <-chan struct{} {
	done := make(chan struct{})
	if strings.TrimSpace(addr) == "" {
		close(done)
		return done
	}
	h := observability.NewAdminRouter(service, status)
	go func() {
		defer close(done)
		if err := observability.ServeAdmin(ctx, addr, h); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("observability.admin stopped")
		}
	}()
	return done
}
