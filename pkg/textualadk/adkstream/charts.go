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

package adkstream

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/jsonschema-go/jsonschema"
)

// chartBlock matches a fenced chart region; group 1 is the descriptor JSON.
var chartBlock = regexp.MustCompile("(?s)```chart\n(.*?)\n```")

//go:embed chart_schema.json
var chartSchemaJSON []byte

// ChartType is the kind of chart a descriptor asks the renderer to draw.
type ChartType string

const (
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
	ChartPie      ChartType = "pie"
	ChartDoughnut ChartType = "doughnut"
)

// Chart is a chart descriptor extracted from the agent's text. Field names
// are shared with the rendering layer.
type Chart struct {
	Type  ChartType `json:"type"`
	Title string    `json:"title"`
	Data  ChartData `json:"data"`
}

// ChartData holds the chart labels and datasets.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of a chart.
type Dataset struct {
	Label           string      `json:"label"`
	Data            []float64   `json:"data"`
	BackgroundColor *ColorValue `json:"backgroundColor,omitempty"`
	BorderColor     string      `json:"borderColor,omitempty"`
	BorderWidth     *float64    `json:"borderWidth,omitempty"`
}

// ColorValue is either a single color or one color per data point.
type ColorValue struct {
	Single string
	List   []string
}

// IsList reports whether the value was given as an array.
func (c ColorValue) IsList() bool {
	return c.List != nil
}

func (c ColorValue) MarshalJSON() ([]byte, error) {
	if c.List != nil {
		return sonic.ConfigStd.Marshal(c.List)
	}
	return sonic.ConfigStd.Marshal(c.Single)
}

func (c *ColorValue) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := sonic.ConfigStd.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("adkstream: backgroundColor list: %w", err)
		}
		if list == nil {
			list = []string{}
		}
		*c = ColorValue{List: list}
		return nil
	}
	var single string
	if err := sonic.ConfigStd.Unmarshal(b, &single); err != nil {
		return fmt.Errorf("adkstream: backgroundColor: %w", err)
	}
	*c = ColorValue{Single: single}
	return nil
}

// ─────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────

// ChartValidator checks a decoded JSON value (maps, slices, float64, string,
// bool, nil) before it is accepted as a Chart.
type ChartValidator interface {
	Validate(v any) error
}

// ErrInvalidChart is returned by validators built in this package.
var ErrInvalidChart = errors.New("adkstream: invalid chart descriptor")

type schemaValidator struct {
	resolved *jsonschema.Resolved
}

func (s schemaValidator) Validate(v any) error {
	if err := s.resolved.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}
	return nil
}

// NewSchemaValidator wraps a resolved JSON Schema as a ChartValidator.
func NewSchemaValidator(resolved *jsonschema.Resolved) ChartValidator {
	return schemaValidator{resolved: resolved}
}

// CompileChartSchema parses and resolves a JSON Schema document.
func CompileChartSchema(raw []byte, opts *jsonschema.ResolveOptions) (*jsonschema.Resolved, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("adkstream: parse chart schema: %w", err)
	}
	if opts == nil {
		opts = &jsonschema.ResolveOptions{ValidateDefaults: true}
	}
	resolved, err := s.Resolve(opts)
	if err != nil {
		return nil, fmt.Errorf("adkstream: resolve chart schema: %w", err)
	}
	return resolved, nil
}

var defaultChartValidator = sync.OnceValues(func() (ChartValidator, error) {
	resolved, err := CompileChartSchema(chartSchemaJSON, nil)
	if err != nil {
		return nil, err
	}
	return NewSchemaValidator(resolved), nil
})

// DefaultChartValidator returns the validator for the built-in chart schema.
func DefaultChartValidator() (ChartValidator, error) {
	return defaultChartValidator()
}

// ChartSchema returns a copy of the built-in chart schema document.
func ChartSchema() []byte {
	return append([]byte(nil), chartSchemaJSON...)
}

// ─────────────────────────────────────────────────────────────
// Extraction
// ─────────────────────────────────────────────────────────────

// ChartExtractor removes valid chart blocks from text.
type ChartExtractor struct {
	validator ChartValidator
	logger    *slog.Logger
}

// NewChartExtractor builds an extractor. A nil validator accepts any
// descriptor that decodes into a Chart; a nil logger uses slog.Default().
func NewChartExtractor(v ChartValidator, logger *slog.Logger) *ChartExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChartExtractor{validator: v, logger: logger}
}

// Extract scans text left to right for fenced chart blocks. Every block whose
// body is a valid descriptor is removed, delimiters included, and returned in
// order. Invalid blocks stay in the text untouched.
func (e *ChartExtractor) Extract(text string) (string, []Chart) {
	matches := chartBlock.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var (
		b      strings.Builder
		charts []Chart
		last   int
	)
	b.Grow(len(text))
	for _, m := range matches {
		chart, err := e.parse(text[m[2]:m[3]])
		if err != nil {
			e.logger.Debug("adkstream: keeping unparsable chart block", "error", err, "offset", m[0])
			continue
		}
		b.WriteString(text[last:m[0]])
		last = m[1]
		charts = append(charts, chart)
	}
	if charts == nil {
		return text, nil
	}
	b.WriteString(text[last:])
	return b.String(), charts
}

func (e *ChartExtractor) parse(body string) (Chart, error) {
	var generic any
	if err := sonic.ConfigStd.UnmarshalFromString(body, &generic); err != nil {
		return Chart{}, fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}
	if _, isObject := generic.(map[string]any); !isObject {
		return Chart{}, fmt.Errorf("%w: not a JSON object", ErrInvalidChart)
	}
	if e.validator != nil {
		if err := e.validator.Validate(generic); err != nil {
			return Chart{}, err
		}
	}
	var chart Chart
	if err := sonic.ConfigStd.UnmarshalFromString(body, &chart); err != nil {
		return Chart{}, fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}
	return chart, nil
}

// ExtractCharts runs the default extractor (built-in schema, silent logger).
func ExtractCharts(text string) (string, []Chart) {
	v, err := DefaultChartValidator()
	if err != nil {
		// The embedded schema is compiled into the binary.
		panic(err)
	}
	return NewChartExtractor(v, slog.New(slog.DiscardHandler)).Extract(text)
}
