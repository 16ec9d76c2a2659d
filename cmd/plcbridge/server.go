package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/plcbridge/internal/config"
	"github.com/danmuck/plcbridge/internal/protocol/frame"
	"github.com/danmuck/plcbridge/internal/protocol/session"
	"github.com/spf13/cobra"
)

func serverCmd(opts *rootOptions) *cobra.Command {
	var (
		listen  string
		handler string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Accept peers and answer every record",
		Long: `Accept peers and answer every record they send.

Handlers:
  echo     reply with the record unchanged
  process  increment integers, double reals, echo the rest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Session.ListenAddr = listen
			}
			if handler != "" {
				cfg.Server.Handler = strings.ToLower(strings.TrimSpace(handler))
			}
			return runServer(cmd.Context(), cfg, nil)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (host:port), overrides server.listen")
	cmd.Flags().StringVar(&handler, "handler", "", "Record handler (echo, process), overrides server.handler")

	return cmd
}

type serverStatus struct {
	Listen  string `json:"listen"`
	Handler string `json:"handler"`
	Active  int    `json:"active_connections"`
	Served  uint64 `json:"served"`
}

func newHandler(name string) (session.Handler, error) {
	switch name {
	case "echo":
		return session.EchoHandler(), nil
	case "process":
		return session.ProcessHandler(), nil
	default:
		return nil, fmt.Errorf("unknown server handler %q", name)
	}
}

// runServer serves until ctx ends. ready, when non-nil, receives the server
// once it is listening.
func runServer(ctx context.Context, cfg config.Config, ready chan<- *session.Server) error {
	s, err := config.BuildSchema(cfg.Schema)
	if err != nil {
		return err
	}
	h, err := newHandler(cfg.Server.Handler)
	if err != nil {
		return err
	}
	srv, err := session.NewServer(cfg.Server.Session, frame.New(s), h)
	if err != nil {
		return err
	}
	defer srv.Close()

	if err := srv.Listen(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	adminDone := startAdmin(ctx, cfg.Admin.Listen, "plcbridge-server", func() any {
		st := serverStatus{
			Handler: cfg.Server.Handler,
			Active:  srv.ActiveConns(),
			Served:  srv.Served(),
		}
		if addr := srv.Addr(); addr != nil {
			st.Listen = addr.String()
		}
		return st
	})
	defer func() {
		cancel()
		<-adminDone
	}()

	if ready != nil {
		ready <- srv
	}
	return srv.Serve(ctx)
}
