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
	"fmt"
	"io"
	"os"
	"strings"
)

// loadOneShotMessage returns the message given by --message or
// --message-file, or "" when neither is set.
func loadOneShotMessage(cfg Config, stdin io.Reader) (string, error) {
	if cfg.Message != "" {
		return cfg.Message, nil
	}
	if cfg.MessageFile == "" {
		return "", nil
	}
	raw, err := readFileOrStdin(cfg.MessageFile, stdin)
	if err != nil {
		return "", fmt.Errorf("read --message-file: %w", err)
	}
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", errors.New("--message-file is empty")
	}
	return msg, nil
}

// loadTemplate returns the prompt template text, or "" when the message is
// sent as is.
func loadTemplate(cfg Config, stdin io.Reader) (string, error) {
	if cfg.TemplateFile == "" {
		return cfg.Template, nil
	}
	if cfg.TemplateFile == "-" && cfg.MessageFile == "-" {
		return "", errors.New("--template-file and --message-file cannot both read stdin")
	}
	b, err := readFileOrStdin(cfg.TemplateFile, stdin)
	if err != nil {
		return "", fmt.Errorf("read template file: %w", err)
	}
	tmpl := strings.TrimSpace(b)
	if tmpl == "" {
		return "", errors.New("template is empty")
	}
	return tmpl, nil
}

func readFileOrStdin(path string, stdin io.Reader) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path != "-" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
