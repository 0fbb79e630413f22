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
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
)

// loadChartValidator compiles the schema at path (or stdin when path is "-")
// into a ChartValidator. Relative $ref paths resolve against the schema
// file directory.
func loadChartValidator(path string, stdin io.Reader) (adkstream.ChartValidator, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	raw, err := readFileOrStdin(path, stdin)
	if err != nil {
		return nil, fmt.Errorf("read --chart-schema: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("chart schema %q is empty", path)
	}

	opts := &jsonschema.ResolveOptions{ValidateDefaults: true}
	if path != "-" {
		baseURI, baseDir, err := fileURIAndDir(path)
		if err != nil {
			return nil, err
		}
		opts.BaseURI = baseURI
		opts.Loader = fileSchemaLoader(baseDir)
	}

	resolved, err := adkstream.CompileChartSchema([]byte(raw), opts)
	if err != nil {
		return nil, err
	}
	return adkstream.NewSchemaValidator(resolved), nil
}

func fileURIAndDir(path string) (baseURI string, baseDir string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("abs path %q: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: abs}
	return u.String(), filepath.Dir(abs), nil
}

// fileSchemaLoader loads referenced schemas from file:// URIs, or from bare
// paths anchored at baseDir.
func fileSchemaLoader(baseDir string) jsonschema.Loader {
	return func(uri *url.URL) (*jsonschema.Schema, error) {
		if uri == nil {
			return nil, fmt.Errorf("nil schema URI")
		}

		// Fragments are resolved by jsonschema itself.
		u := *uri
		u.Fragment = ""

		switch u.Scheme {
		case "", "file":
			p := u.Path
			if p == "" {
				p = u.String()
			}
			if p == "" || p == "-" {
				return nil, fmt.Errorf("invalid schema path for URI %q", uri.String())
			}
			if !filepath.IsAbs(p) && baseDir != "" {
				p = filepath.Join(baseDir, p)
			}

			raw, err := readFileOrStdin(p, nil)
			if err != nil {
				return nil, err
			}
			var s jsonschema.Schema
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return nil, fmt.Errorf("parse referenced schema %q: %w", uri.String(), err)
			}
			return &s, nil
		default:
			return nil, fmt.Errorf("unsupported schema URI scheme %q (uri=%q)", u.Scheme, uri.String())
		}
	}
}
