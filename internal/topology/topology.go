// Package topology loads a small declarative pipeline description and
// executes it against file-based input for cmd/streamctl. It is
// deliberately narrow — a linear chain of string-to-string transforms —
// rather than a general dynamic-typed DAG builder: the processor
// contract is generic over Go types fixed at compile time, so a CLI that
// accepts an arbitrary topology of arbitrarily-typed windowing operators
// would need a reflection-based type registry far beyond this core's
// scope. Map/filter over strings is enough to exercise the engine,
// transform and harness packages end to end.
package topology

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riverwork/corestream/pkg/harness"
	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/processor"
	"github.com/riverwork/corestream/pkg/transform"
)

// Stage is one pipeline step: a named operation applied in sequence.
type Stage struct {
	Type string `json:"type"` // "map" or "filter"
	Op   string `json:"op"`   // operation name, see buildStage
}

// Topology is an ordered chain of Stages, each string in, string out.
type Topology struct {
	Stages []Stage `json:"stages"`
}

// Load reads and validates a Topology from a JSON or YAML file (selected
// by extension: .yaml/.yml use YAML, anything else JSON), rejecting any
// unrecognized stage up front so `streamctl validate` can report contract
// errors without executing.
func Load(path string) (*Topology, error) {
	var data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}
	var t Topology
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &t)
	default:
		err = json.Unmarshal(data, &t)
	}
	if err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", path, err)
	}
	for _, s := range t.Stages {
		if _, err := buildStage(s); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// buildStage resolves one Stage into a processor.Processor[string,string].
func buildStage(s Stage) (processor.Processor[string, string], error) {
	switch s.Type {
	case "map":
		switch s.Op {
		case "upper":
			return transform.NewMap(strings.ToUpper), nil
		case "lower":
			return transform.NewMap(strings.ToLower), nil
		case "trim":
			return transform.NewMap(strings.TrimSpace), nil
		}
	case "filter":
		switch s.Op {
		case "nonempty":
			return transform.NewFilter(func(s string) bool { return s != "" }), nil
		}
	}
	return nil, fmt.Errorf("topology: unrecognized stage %q/%q", s.Type, s.Op)
}

func readLines(path string) ([]string, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topology: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	var sc = bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// run feeds lines through every stage in order, using pkg/harness as the
// reference executor for each stage.
func (t *Topology) run(lines []string) ([]string, error) {
	var cur = lines
	for _, s := range t.Stages {
		var proc, err = buildStage(s)
		if err != nil {
			return nil, err
		}
		var entries = make([]inbox.Entry[string], len(cur))
		for i, v := range cur {
			entries[i] = inbox.Data(v)
		}
		var outputs = harness.Run[string, string](proc, entries)
		var next = make([]string, 0, len(outputs))
		for _, o := range outputs {
			if !o.IsWM {
				next = append(next, o.Item)
			}
		}
		cur = next
	}
	return cur, nil
}

// RunFile loads inputPath as newline-delimited records and runs them
// through the topology, returning every emitted item.
func (t *Topology) RunFile(inputPath string) ([]string, error) {
	var lines, err = readLines(inputPath)
	if err != nil {
		return nil, err
	}
	return t.run(lines)
}

// Bench drives n synthetic items through the topology and reports
// throughput — a stand-in for the per-callback latency percentiles a
// production deployment would read off the telemetry histograms, which
// need a running engine.Pool under real concurrent load to be
// meaningful; Bench exercises the same processor code single-threaded.
func (t *Topology) Bench(n int) (string, error) {
	var lines = make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("item-%d", i)
	}
	var start = time.Now()
	var out, err = t.run(lines)
	if err != nil {
		return "", err
	}
	var elapsed = time.Since(start)
	var perItem = time.Duration(0)
	if n > 0 {
		perItem = elapsed / time.Duration(n)
	}
	return fmt.Sprintf("bench: %d in, %d out, %s total, %s/item", n, len(out), elapsed, perItem), nil
}
