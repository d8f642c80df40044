/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command peerd is the minimal terminal entry point for the engine: a
// cobra root command with a serve subcommand (runs a server.Server) and a
// dial subcommand (runs a client.Client against a remote endpoint), both
// fed by the same layered config.Config.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sabouaram/peerlink/client"
	"github.com/sabouaram/peerlink/config"
	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/metrics"
	"github.com/sabouaram/peerlink/server"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		jsonLog    bool
		metricsBnd string
	)

	root := &cobra.Command{
		Use:   "peerd",
		Short: "Run a peer protocol engine server or client from the terminal",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML/TOML/JSON config file")
	root.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "emit JSON-formatted log entries instead of text")
	root.PersistentFlags().StringVar(&metricsBnd, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a server, accepting connections on the given port",
	}
	var port int
	serveCmd.Flags().IntVar(&port, "port", 9000, "UDP port to listen on")
	config.BindFlags(serveCmd.Flags())
	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(configFile, jsonLog, metricsBnd, port, serveCmd.Flags())
	}

	dialCmd := &cobra.Command{
		Use:   "dial <host:port>",
		Short: "Run as a client, connecting to a remote peer engine server",
		Args:  cobra.ExactArgs(1),
	}
	config.BindFlags(dialCmd.Flags())
	dialCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runDial(configFile, jsonLog, metricsBnd, args[0], dialCmd.Flags())
	}

	root.AddCommand(serveCmd, dialCmd)
	return root
}

func buildLogger(jsonLog bool, instanceID uuid.UUID) logger.Logger {
	log := logger.New()
	log.SetJSON(jsonLog)
	return log.WithFields(map[string]any{"instance_id": instanceID.String()})
}

func serveMetrics(addr string, log logger.Logger) *metrics.Prometheus {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	p := metrics.NewPrometheus(reg, "peerlink")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error(fmt.Sprintf("metrics server stopped: %v", err))
		}
	}()
	return p
}

func runServe(configFile string, jsonLog bool, metricsAddr string, port int, fs *pflag.FlagSet) error {
	cfg, err := config.Load(configFile, fs)
	if err != nil {
		return err
	}

	instanceID := uuid.New()
	log := buildLogger(jsonLog, instanceID)
	log.Info(fmt.Sprintf("starting server on port %d", port))

	pool := message.NewPool(message.DefaultBufferSize)
	t := transport.NewUDP(cfg.SocketBufferSize)
	log.Info(fmt.Sprintf("binding %s transport", t.Network()))

	srv := server.New(t, pool, log, cfg.MaxClientCount, cfg.TimeoutMs, cfg.HeartbeatIntervalMs, cfg.ConnectTimeoutMs)
	srv.UseMessageHandlers = cfg.UseMessageHandlers
	if m := serveMetrics(metricsAddr, log); m != nil {
		srv.Metrics = m
	}

	srv.OnClientConnected = func(id uint16) {
		log.Info(fmt.Sprintf("client %d connected", id))
	}
	srv.OnClientDisconnected = func(id uint16, reason wire.DisconnectReason) {
		log.Info(fmt.Sprintf("client %d disconnected: %s", id, reason.String()))
	}

	if err := srv.Start(port); err != nil {
		return err
	}
	defer srv.Stop()

	runTickLoop(func() { srv.Tick() })
	return nil
}

func runDial(configFile string, jsonLog bool, metricsAddr string, remote string, fs *pflag.FlagSet) error {
	cfg, err := config.Load(configFile, fs)
	if err != nil {
		return err
	}

	instanceID := uuid.New()
	log := buildLogger(jsonLog, instanceID)
	log.Info(fmt.Sprintf("dialing %s", remote))

	host, port, err := splitHostPort(remote)
	if err != nil {
		return err
	}

	pool := message.NewPool(message.DefaultBufferSize)
	t := transport.NewUDP(cfg.SocketBufferSize)
	log.Info(fmt.Sprintf("binding %s transport", t.Network()))
	cl := client.New(t, pool, log, cfg.TimeoutMs, cfg.HeartbeatIntervalMs)

	_ = serveMetrics(metricsAddr, log)

	cl.OnConnected = func() {
		log.Info(fmt.Sprintf("connected, assigned id %d", cl.ID()))
	}
	cl.OnConnectionFailed = func(reason client.FailureReason, payload []byte) {
		log.Error(fmt.Sprintf("connection failed: %s", reason.String()))
	}
	cl.OnDisconnected = func(reason wire.DisconnectReason, payload []byte) {
		log.Info(fmt.Sprintf("disconnected: %s", reason.String()))
	}

	endpoint := transport.NewEndpoint(host, port, "")
	if err := cl.Connect(endpoint, nil, cfg.ConnectTimeoutMs); err != nil {
		return err
	}
	defer cl.Stop()

	runTickLoop(func() { cl.Tick() })
	return nil
}

// tickIntervalMs drives the single-threaded tick() loop; fine-grained enough
// to keep retransmit/heartbeat jitter well under the protocol's own timers.
const tickIntervalMs = 10

// runTickLoop calls tick forever at a fixed cadence. Both serve and dial
// run the whole engine on the calling goroutine: the transport's reader runs
// separately in the background, but all state mutation happens here.
func runTickLoop(tick func()) {
	ticker := time.NewTicker(tickIntervalMs * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		tick()
	}
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}
