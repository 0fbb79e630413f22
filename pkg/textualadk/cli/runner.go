// Copyright 2026 Benoit Pereira da Silva
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benoit-pereira-da-silva/textual/pkg/carrier"
	"github.com/benoit-pereira-da-silva/textual/pkg/textual"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/memories"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualshared"
)

// version is set at build time using:
//
//	go build -ldflags "-X github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/cli.version=v1.2.3"
var version = "dev"

// Version returns the build-time version string printed by --version.
func Version() string { return version }

// AgentBuilder builds the Agent used by the CLI from the parsed config.
type AgentBuilder func(cfg Config, logger *slog.Logger, stdin io.Reader) (*textualadk.Agent, error)

// Streamer runs one prompt through the processor and streams the output to
// outw. It returns the final accumulated text (last snapshot).
type Streamer func(
	ctx context.Context,
	proc textual.Processor[carrier.String],
	prompt string,
	outw *bufio.Writer,
) (string, error)

// Runner is a configurable CLI runtime that can be embedded by third parties.
type Runner struct {
	Stdin  io.Reader
	Getenv func(string) string
	Usage  func(io.Writer)

	Parse        func(args []string) (Config, error)
	AgentBuilder AgentBuilder
	Streamer     Streamer
}

// Option configures a Runner.
type Option func(*Runner)

// WithStdin sets the reader used for --loop, --message-file - and
// --template-file -.
func WithStdin(r io.Reader) Option {
	return func(rn *Runner) { rn.Stdin = r }
}

// WithGetenv sets the environment lookup.
func WithGetenv(fn func(string) string) Option {
	return func(rn *Runner) { rn.Getenv = fn }
}

// WithAgentBuilder replaces DefaultAgentBuilder.
func WithAgentBuilder(b AgentBuilder) Option {
	return func(rn *Runner) { rn.AgentBuilder = b }
}

// WithStreamer replaces DefaultStreamer.
func WithStreamer(s Streamer) Option {
	return func(rn *Runner) { rn.Streamer = s }
}

// NewRunner constructs a Runner configured with the default adkchat behavior.
// Use options to override specific extension points.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Stdin:        os.Stdin,
		Getenv:       os.Getenv,
		Usage:        PrintUsage,
		AgentBuilder: DefaultAgentBuilder,
		Streamer:     DefaultStreamer,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.ensureDefaults()
	return r
}

func (r *Runner) ensureDefaults() {
	if r.Stdin == nil {
		r.Stdin = os.Stdin
	}
	if r.Getenv == nil {
		r.Getenv = os.Getenv
	}
	if r.Usage == nil {
		r.Usage = PrintUsage
	}
	if r.AgentBuilder == nil {
		r.AgentBuilder = DefaultAgentBuilder
	}
	if r.Streamer == nil {
		r.Streamer = DefaultStreamer
	}
	if r.Parse == nil {
		get := r.Getenv
		r.Parse = func(args []string) (Config, error) { return parseCLI(args, get) }
	}
}

// DefaultAgentBuilder connects to the ADK api server named by cfg.
func DefaultAgentBuilder(cfg Config, logger *slog.Logger, stdin io.Reader) (*textualadk.Agent, error) {
	config := textualadk.NewConfig(cfg.APIURL, cfg.App).WithIdentity(cfg.UserID, cfg.SessionID)
	opts := []textualadk.AgentOption{textualadk.WithAgentLogger(logger)}

	if cfg.ChartSchema != "" {
		v, err := loadChartValidator(cfg.ChartSchema, stdin)
		if err != nil {
			return nil, err
		}
		extractor := adkstream.NewChartExtractor(v, logger)
		opts = append(opts, textualadk.WithStreamOptions(adkstream.WithChartExtractor(extractor)))
	}

	if cfg.HistoryLimit.IsSet() || cfg.HistoryTimeout.IsSet() {
		limit := textualadk.DefaultHistoryLimit
		if cfg.HistoryLimit.IsSet() {
			limit = cfg.HistoryLimit.Value()
		}
		timeout := cfg.HistoryTimeout.ValueOr(textualadk.DefaultHistoryTimeout)
		opts = append(opts, textualadk.WithHistory(memories.NewStorage[textualadk.Exchange](limit, timeout, time.Minute)))
	}

	return textualadk.NewAgent(config, opts...)
}

// Run executes the CLI against argv.
func (r *Runner) Run(argv []string, stdout io.Writer, stderr io.Writer) int {
	r.ensureDefaults()

	if len(argv) == 0 {
		argv = []string{"adkchat"}
	}

	// "adkchat help" convenience command.
	if len(argv) >= 2 {
		switch strings.TrimSpace(argv[1]) {
		case "help", "usage", "--help", "-help", "-h", "--h":
			r.Usage(stdout)
			return 0
		}
	}

	cfg, err := r.Parse(argv[1:])
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		fmt.Fprintln(stderr)
		r.Usage(stderr)
		return 2
	}

	if cfg.Help.Enabled() {
		r.Usage(stdout)
		return 0
	}
	if cfg.Version.Enabled() {
		fmt.Fprintln(stdout, version)
		return 0
	}

	aggregate := textualshared.ParseAggregateType(cfg.AggregateType)

	// One-shot input is loaded before anything touches the network.
	var message string
	if !cfg.Loop.Enabled() {
		message, err = loadOneShotMessage(cfg, r.Stdin)
		if err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 2
		}
		if message == "" {
			fmt.Fprintln(stderr, "Error: provide --message or --message-file, or use --loop")
			fmt.Fprintln(stderr)
			r.Usage(stderr)
			return 2
		}
	}

	templateText, err := loadTemplate(cfg, r.Stdin)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	logger := newLogger(cfg, stderr)

	agent, err := r.AgentBuilder(cfg, logger, r.Stdin)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	defer agent.Close()

	results := &resultBox{}
	proc, err := textualadk.NewResponseProcessor[carrier.String](agent, templateText)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
	configured := proc.WithAggregateType(aggregate).WithResultHook(results.set)

	if cfg.Verbose.Enabled() {
		userID, sessionID := agent.Session().Identity()
		logger.Debug("adkchat: ready",
			"api_url", cfg.APIURL,
			"app", cfg.App,
			"user_id", userID,
			"session_id", sessionID,
			"aggregate", aggregate,
			"template", templateText != "",
			"chart_schema", cfg.ChartSchema)
	}

	// Root context reacts to Ctrl+C (SIGINT) and SIGTERM.
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Prepare a buffered writer for smooth streaming.
	outw := bufio.NewWriter(stdout)
	defer outw.Flush()

	c := &chat{
		cfg:     cfg,
		agent:   agent,
		proc:    configured,
		results: results,
		stream:  r.Streamer,
		pacer:   textualadk.Pacer{Delay: cfg.SpecialistDelay.ValueOr(textualadk.DefaultSpecialistDelay)},
		outw:    outw,
		stderr:  stderr,
	}

	if cfg.Loop.Enabled() {
		return interactiveLoop(rootCtx, c, r.Stdin)
	}

	if err := c.exchange(rootCtx, message); err != nil {
		_ = outw.Flush()
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
