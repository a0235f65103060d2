package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/reagent/internal/web"
)

var serveFlags struct {
	host string
	port int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the WebSocket API for browser front ends",
	Long: `Serve the WebSocket API used by browser front ends.

Clients connect over WebSocket, manage sessions and receive streamed
responses as JSON messages. The listen address comes from the web_host and
web_port config keys unless overridden by flags.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Listen host (default: config web_host)")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "Listen port (default: config web_port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	host := rt.cfg.WebHost
	if serveFlags.host != "" {
		host = serveFlags.host
	}
	port := rt.cfg.WebPort
	if serveFlags.port != 0 {
		port = serveFlags.port
	}

	srv := web.NewServer(rt.eng, rt.tools, rt.store)
	return srv.ListenAndServe(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
}
