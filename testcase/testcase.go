// Package testcase loads the scenario files that drive a Go-Back-N session.
//
// The text format, shared by sender and receiver, is
//
//	N <window_size>, S <total_units>
//	<code> <code> ...
//
// where each code is 0 (none), 1 (timeout) or 2 (corrupt), separated by any
// whitespace. At most MaxActions codes are read; the rest of the file is ignored.
//
// Files ending in .yaml or .yml use the equivalent YAML document:
//
//	window_size: 3
//	total_units: 5
//	actions: [1, 0, 0]
package testcase

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-gbn/fault"
	"github.com/arloliu/go-gbn/packet"
)

// MaxActions caps the number of fault codes read from a file.
const MaxActions = 255

var (
	// ErrHeader indicates the "N <n>, S <s>" header is missing or malformed.
	ErrHeader = errors.New("testcase: error reading window size and byte count")

	// ErrAction indicates a fault code that is not an integer in [0, 2].
	ErrAction = errors.New("testcase: invalid packet action")

	// ErrRange indicates a window size or unit count outside [1, packet.MaxParam].
	ErrRange = errors.New("testcase: parameter out of range")
)

var headerRe = regexp.MustCompile(`^\s*N\s*(-?\d+)\s*,\s*S\s*(-?\d+)`)

// TestCase is one loaded scenario.
type TestCase struct {
	WindowSize int
	TotalUnits int
	Actions    fault.Script
	// Truncated is set when the file held more than MaxActions codes.
	Truncated bool
}

type yamlDoc struct {
	WindowSize int   `yaml:"window_size"`
	TotalUnits int   `yaml:"total_units"`
	Actions    []int `yaml:"actions"`
}

// Load reads the test case at path, choosing the format by file extension.
func Load(path string) (*TestCase, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("testcase: open %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(bytes.NewReader(data))
	default:
		return Parse(bytes.NewReader(data))
	}
}

// Parse reads the text format from r.
func Parse(r io.Reader) (*TestCase, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("testcase: read: %w", err)
	}

	m := headerRe.FindSubmatchIndex(data)
	if m == nil {
		return nil, ErrHeader
	}

	tc := &TestCase{}
	if tc.WindowSize, err = strconv.Atoi(string(data[m[2]:m[3]])); err != nil {
		return nil, fmt.Errorf("%w: window size: %w", ErrHeader, err)
	}
	if tc.TotalUnits, err = strconv.Atoi(string(data[m[4]:m[5]])); err != nil {
		return nil, fmt.Errorf("%w: byte count: %w", ErrHeader, err)
	}

	codes := make([]int, 0, 16)
	for _, field := range strings.Fields(string(data[m[1]:])) {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrAction, field)
		}
		codes = append(codes, v)
	}

	if err := tc.setActions(codes); err != nil {
		return nil, err
	}

	if err := tc.Validate(); err != nil {
		return nil, err
	}

	return tc, nil
}

// ParseYAML reads the YAML format from r.
func ParseYAML(r io.Reader) (*TestCase, error) {
	var doc yamlDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrHeader
		}

		return nil, fmt.Errorf("testcase: decode yaml: %w", err)
	}

	tc := &TestCase{WindowSize: doc.WindowSize, TotalUnits: doc.TotalUnits}
	if err := tc.setActions(doc.Actions); err != nil {
		return nil, err
	}

	if err := tc.Validate(); err != nil {
		return nil, err
	}

	return tc, nil
}

func (tc *TestCase) setActions(codes []int) error {
	if len(codes) > MaxActions {
		codes = codes[:MaxActions]
		tc.Truncated = true
	}

	tc.Actions = make(fault.Script, 0, len(codes))
	for i, v := range codes {
		code := fault.Code(v)
		if !code.IsValid() {
			return fmt.Errorf("%w: entry %d is %d", ErrAction, i, v)
		}
		tc.Actions = append(tc.Actions, code)
	}

	return nil
}

// Validate checks that both parameters fit in one payload byte and are positive.
func (tc *TestCase) Validate() error {
	if tc.WindowSize < 1 || tc.WindowSize > packet.MaxParam {
		return fmt.Errorf("%w: window size %d, want [1, %d]", ErrRange, tc.WindowSize, packet.MaxParam)
	}
	if tc.TotalUnits < 1 || tc.TotalUnits > packet.MaxParam {
		return fmt.Errorf("%w: total units %d, want [1, %d]", ErrRange, tc.TotalUnits, packet.MaxParam)
	}

	return nil
}

// ActionCount returns the number of scripted attempts.
func (tc *TestCase) ActionCount() int {
	return len(tc.Actions)
}
