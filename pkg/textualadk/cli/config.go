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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
)

// Config contains user-facing options.
type Config struct {
	Help    OptBool
	Version OptBool
	Verbose OptBool

	// Backend.
	APIURL    string
	App       string
	UserID    string
	SessionID string

	// Exactly one of these is used in one-shot mode.
	Message     string
	MessageFile string

	// Template is optional. When set, it renders the message; the raw input
	// is available as {{.Input}}.
	Template     string
	TemplateFile string

	// ChartSchema replaces the embedded chart schema.
	ChartSchema string

	Loop          OptBool
	ExitCommands  string
	AggregateType string
	Timeout       OptDuration
	JSON          OptBool
	NoStream      OptBool

	// SpecialistDelay paces the routed follow-up message.
	SpecialistDelay OptDuration

	HistoryLimit   OptInt
	HistoryTimeout OptDuration

	LogFormat string
}

// OptBool is a flag.Value that tracks whether it has been explicitly set.
// It also supports bool flag shorthand `--flag` (implicit true) by implementing
// IsBoolFlag.
type OptBool struct {
	set bool
	val bool
}

func (b *OptBool) IsBoolFlag() bool { return true }

func (b *OptBool) Set(s string) error {
	b.set = true
	// `--flag` may call Set("").
	if strings.TrimSpace(s) == "" {
		b.val = true
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("parse bool %q: %w", s, err)
	}
	b.val = v
	return nil
}

func (b *OptBool) String() string {
	if !b.set {
		return ""
	}
	return strconv.FormatBool(b.val)
}

// IsSet reports whether the flag has been explicitly set by the user.
func (b OptBool) IsSet() bool { return b.set }

// Value returns the parsed flag value.
func (b OptBool) Value() bool { return b.val }

// Enabled is a convenience shortcut for IsSet() && Value().
func (b OptBool) Enabled() bool { return b.set && b.val }

type OptInt struct {
	set bool
	val int
}

func (i *OptInt) Set(s string) error {
	i.set = true
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parse int %q: %w", s, err)
	}
	i.val = v
	return nil
}

func (i *OptInt) String() string {
	if !i.set {
		return ""
	}
	return strconv.Itoa(i.val)
}

func (i OptInt) IsSet() bool { return i.set }

func (i OptInt) Value() int { return i.val }

type OptDuration struct {
	set bool
	val time.Duration
}

func (d *OptDuration) Set(s string) error {
	d.set = true
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.val = v
	return nil
}

func (d *OptDuration) String() string {
	if !d.set {
		return ""
	}
	return d.val.String()
}

func (d OptDuration) IsSet() bool { return d.set }

func (d OptDuration) Value() time.Duration { return d.val }

// ValueOr returns the parsed duration, or def when the flag was not set.
func (d OptDuration) ValueOr(def time.Duration) time.Duration {
	if !d.set {
		return def
	}
	return d.val
}

func parseCLI(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Config{
		APIURL:        textualadk.DefaultApiUrl,
		App:           textualadk.DefaultAppName,
		AggregateType: "word",
		ExitCommands:  "exit,quit,/exit,/quit",
		LogFormat:     "text",
	}
	if v := strings.TrimSpace(getenv("ADK_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(getenv("ADK_APP_NAME")); v != "" {
		cfg.App = v
	}
	cfg.UserID = strings.TrimSpace(getenv("ADK_USER_ID"))
	cfg.SessionID = strings.TrimSpace(getenv("ADK_SESSION_ID"))

	fs := flag.NewFlagSet("adkchat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Meta.
	fs.Var(&cfg.Help, "help", "Show help.")
	fs.Var(&cfg.Help, "h", "Show help (shorthand).")
	fs.Var(&cfg.Version, "version", "Print version and exit.")
	fs.Var(&cfg.Verbose, "verbose", "Enable debug logging to stderr.")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text|json.")

	// Backend.
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "ADK api server base URL. Can also be set via ADK_API_URL.")
	fs.StringVar(&cfg.App, "app", cfg.App, "ADK application name. Can also be set via ADK_APP_NAME.")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "Pinned user id (default: generated).")
	fs.StringVar(&cfg.SessionID, "session", cfg.SessionID, "Pinned session id (default: generated).")

	// Input.
	fs.StringVar(&cfg.Message, "message", cfg.Message, "Message to send (one-shot).")
	fs.StringVar(&cfg.MessageFile, "message-file", cfg.MessageFile, "Path to a file holding the message. Use '-' to read stdin (one-shot).")
	fs.StringVar(&cfg.Template, "template", cfg.Template, "Go text/template string. The message is available as {{.Input}}.")
	fs.StringVar(&cfg.TemplateFile, "template-file", cfg.TemplateFile, "Path to a Go text/template file. The message is available as {{.Input}}.")
	fs.StringVar(&cfg.ChartSchema, "chart-schema", cfg.ChartSchema, "Path to a JSON Schema replacing the embedded chart schema.")

	// Runtime controls.
	fs.Var(&cfg.Loop, "loop", "Loop mode: after a response completes, prompt for a new message on stdin.")
	fs.StringVar(&cfg.ExitCommands, "exit-commands", cfg.ExitCommands, "Comma-separated commands that exit in --loop.")
	fs.StringVar(&cfg.AggregateType, "aggregate", cfg.AggregateType, "Streaming aggregation: word|line.")
	fs.Var(&cfg.Timeout, "timeout", "Per-request timeout (e.g. 30s, 2m).")
	fs.Var(&cfg.JSON, "json", "Print each result as JSON instead of text.")
	fs.Var(&cfg.NoStream, "no-stream", "Do not print partial text while the answer streams.")
	fs.Var(&cfg.SpecialistDelay, "specialist-delay", "Delay before the routed specialist message (default: 1s).")
	fs.Var(&cfg.HistoryLimit, "history-limit", "Exchanges kept per session (default: 200).")
	fs.Var(&cfg.HistoryTimeout, "history-timeout", "Exchange retention (default: 24h).")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	// Sanitize.
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.App = strings.TrimSpace(cfg.App)
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	cfg.SessionID = strings.TrimSpace(cfg.SessionID)
	cfg.Message = strings.TrimSpace(cfg.Message)
	cfg.MessageFile = strings.TrimSpace(cfg.MessageFile)
	cfg.Template = strings.TrimSpace(cfg.Template)
	cfg.TemplateFile = strings.TrimSpace(cfg.TemplateFile)
	cfg.ChartSchema = strings.TrimSpace(cfg.ChartSchema)
	cfg.ExitCommands = strings.TrimSpace(cfg.ExitCommands)
	cfg.AggregateType = strings.ToLower(strings.TrimSpace(cfg.AggregateType))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	// Mutually exclusive flags.
	if cfg.Template != "" && cfg.TemplateFile != "" {
		return cfg, errors.New("use either --template or --template-file (not both)")
	}
	if cfg.Message != "" && cfg.MessageFile != "" {
		return cfg, errors.New("use either --message or --message-file (not both)")
	}
	switch cfg.AggregateType {
	case "word", "line":
	default:
		return cfg, fmt.Errorf("unknown aggregation %q (expected word|line)", cfg.AggregateType)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return cfg, fmt.Errorf("unknown log format %q (expected text|json)", cfg.LogFormat)
	}
	if cfg.HistoryLimit.IsSet() && cfg.HistoryLimit.Value() < 0 {
		return cfg, errors.New("--history-limit must not be negative")
	}

	return cfg, nil
}

// PrintUsage writes the CLI help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "adkchat - streaming chat client for an ADK multi-agent coordinator")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  adkchat help")
	fmt.Fprintln(w, "  adkchat [--message <text> | --message-file <path>] [flags]")
	fmt.Fprintln(w, "  adkchat --loop [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Core:")
	fmt.Fprintln(w, "  --api-url <url>                ADK api server (default: http://localhost:8000, env ADK_API_URL).")
	fmt.Fprintln(w, "  --app <name>                   ADK application (default: coordinator, env ADK_APP_NAME).")
	fmt.Fprintln(w, "  --user <id>                    Pinned user id (env ADK_USER_ID).")
	fmt.Fprintln(w, "  --session <id>                 Pinned session id (env ADK_SESSION_ID).")
	fmt.Fprintln(w, "  --message <text>               Message to send (one-shot).")
	fmt.Fprintln(w, "  --message-file <path|->        Message from file, or stdin when path is '-'.")
	fmt.Fprintln(w, "  --template <tmpl>              Go text/template string; message is {{.Input}}.")
	fmt.Fprintln(w, "  --template-file <path>         Go text/template file; message is {{.Input}}.")
	fmt.Fprintln(w, "  --chart-schema <path>          JSON Schema replacing the embedded chart schema.")
	fmt.Fprintln(w, "  --aggregate <word|line>        Streaming aggregation (default: word).")
	fmt.Fprintln(w, "  --no-stream                    Print only the final answer.")
	fmt.Fprintln(w, "  --json                         Print results as JSON.")
	fmt.Fprintln(w, "  --timeout <duration>           Per-request timeout (e.g. 30s, 2m).")
	fmt.Fprintln(w, "  --specialist-delay <duration>  Delay before the routed specialist message (default: 1s).")
	fmt.Fprintln(w, "  --history-limit <int>          Exchanges kept per session (default: 200).")
	fmt.Fprintln(w, "  --history-timeout <duration>   Exchange retention (default: 24h).")
	fmt.Fprintln(w, "  --loop                         Interactive loop mode.")
	fmt.Fprintln(w, "  --exit-commands <csv>          Exit commands for loop mode.")
	fmt.Fprintln(w, "  --log-format <text|json>       Log format on stderr (default: text).")
	fmt.Fprintln(w, "  --verbose                      Debug logging.")
	fmt.Fprintln(w, "  --version                      Print version.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Loop commands:")
	fmt.Fprintln(w, "  /reset                         Start a new ADK session.")
	fmt.Fprintln(w, "  /history                       Show the exchanges of the current session.")
	fmt.Fprintln(w, "  /session                       Print the current session id.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  adkchat --message \"How do I retire at 50?\"")
	fmt.Fprintln(w, "  ADK_API_URL=http://adk:8000 adkchat --loop --aggregate line")
	fmt.Fprintln(w, "  adkchat --json --message-file question.txt")
}
