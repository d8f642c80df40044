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

// Package config is the layered configuration surface for a peer engine
// process: defaults, an optional file, PEER_-prefixed environment variables,
// and bound CLI flags, in that increasing order of precedence, via viper.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	liberr "github.com/sabouaram/peerlink/errors"
)

// Config carries every runtime knob a server or client needs to start.
type Config struct {
	TimeoutMs           int64 `mapstructure:"timeout_ms"`
	HeartbeatIntervalMs int64 `mapstructure:"heartbeat_interval_ms"`
	ConnectTimeoutMs    int64 `mapstructure:"connect_timeout_ms"`
	SocketBufferSize    int   `mapstructure:"socket_buffer_size"`
	MaxClientCount      int   `mapstructure:"max_client_count"`
	UseMessageHandlers  bool  `mapstructure:"use_message_handlers"`
}

// defaults mirror the constants a bare-stdlib caller would otherwise
// hardcode; every one of them is overridable by file, env, or flag.
func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout_ms", 5_000)
	v.SetDefault("heartbeat_interval_ms", 1_000)
	v.SetDefault("connect_timeout_ms", 5_000)
	v.SetDefault("socket_buffer_size", 1024*1024)
	v.SetDefault("max_client_count", 64)
	v.SetDefault("use_message_handlers", true)
}

// BindFlags registers the CLI flags that shadow every Config field on fs,
// so callers (cmd/peerd) can wire them into a cobra command before Load.
func BindFlags(fs *pflag.FlagSet) {
	fs.Int64("timeout-ms", 5_000, "idle-timeout before a connection is dropped, in milliseconds")
	fs.Int64("heartbeat-interval-ms", 1_000, "interval between heartbeat pings, in milliseconds")
	fs.Int64("connect-timeout-ms", 5_000, "client wait for Welcome, and server grace period before a rejected connection is dropped, in milliseconds")
	fs.Int("socket-buffer-size", 1024*1024, "OS socket receive/send buffer size hint in bytes")
	fs.Int("max-client-count", 64, "maximum number of simultaneously connected clients (server only)")
	fs.Bool("use-message-handlers", true, "dispatch non-relayed messages to registered per-ID handlers, falling back to OnMessageReceived")
}

// Load builds a Config from defaults, an optional file at path (skipped if
// empty), PEER_-prefixed environment variables, and fs's bound flags, in
// that order of increasing precedence.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PEER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, liberr.New(liberr.CodeInvalidConfig, err)
		}
	}

	if fs != nil {
		// Flags are named with dashes while Config's keys use underscores, so
		// each flag is bound under its underscore key for Unmarshal to see it.
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr == nil {
				bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
			}
		})
		if bindErr != nil {
			return nil, liberr.New(liberr.CodeInvalidConfig, bindErr)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, liberr.New(liberr.CodeInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values before the engine starts, returning
// a typed *errors.Error with CodeInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.TimeoutMs <= 0:
		return liberr.Newf(liberr.CodeInvalidConfig, "timeout_ms must be positive, got %d", c.TimeoutMs)
	case c.HeartbeatIntervalMs <= 0:
		return liberr.Newf(liberr.CodeInvalidConfig, "heartbeat_interval_ms must be positive, got %d", c.HeartbeatIntervalMs)
	case c.ConnectTimeoutMs <= 0:
		return liberr.Newf(liberr.CodeInvalidConfig, "connect_timeout_ms must be positive, got %d", c.ConnectTimeoutMs)
	case c.SocketBufferSize <= 0:
		return liberr.Newf(liberr.CodeInvalidConfig, "socket_buffer_size must be positive, got %d", c.SocketBufferSize)
	case c.MaxClientCount <= 0:
		return liberr.Newf(liberr.CodeInvalidConfig, "max_client_count must be positive, got %d", c.MaxClientCount)
	case c.HeartbeatIntervalMs >= c.TimeoutMs:
		return liberr.Newf(liberr.CodeInvalidConfig, "heartbeat_interval_ms (%d) must be smaller than timeout_ms (%d)", c.HeartbeatIntervalMs, c.TimeoutMs)
	}
	return nil
}
