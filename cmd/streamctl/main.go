// Command streamctl is the CLI for building and exercising processor
// topologies, following go/flowctl/main.go's go-flags subcommand
// pattern: a root parser, one addCmd call per subcommand, each
// subcommand a struct implementing Execute.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/riverwork/corestream/internal/topology"
)

type runCmd struct {
	Topology string `long:"topology" short:"t" required:"true" description:"Path to a topology file (YAML for .yaml/.yml, JSON otherwise) listing the pipeline stages."`
	Input    string `long:"input" short:"i" required:"true" description:"Path to an input file; each line is one string record."`
}

func (c *runCmd) Execute(args []string) error {
	var top, err = topology.Load(c.Topology)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	var outputs, runErr = top.RunFile(c.Input)
	if runErr != nil {
		color.Red("run failed: %v", runErr)
		return runErr
	}
	for _, o := range outputs {
		fmt.Println(o)
	}
	color.Green("run complete: %d items emitted", len(outputs))
	return nil
}

type validateCmd struct {
	Topology string `long:"topology" short:"t" required:"true" description:"Path to a topology file (YAML or JSON) to validate."`
}

func (c *validateCmd) Execute(args []string) error {
	var _, err = topology.Load(c.Topology)
	if err != nil {
		color.Red("invalid topology: %v", err)
		return err
	}
	color.Green("topology OK")
	return nil
}

type benchCmd struct {
	Topology string `long:"topology" short:"t" required:"true" description:"Path to a topology file (YAML or JSON) to benchmark."`
	Items    int    `long:"items" default:"100000" description:"Number of synthetic items to drive through the topology."`
}

func (c *benchCmd) Execute(args []string) error {
	var top, err = topology.Load(c.Topology)
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}
	var report, benchErr = top.Bench(c.Items)
	if benchErr != nil {
		return benchErr
	}
	fmt.Println(report)
	return nil
}

func addCmd(parser *flags.Parser, name, short string, data interface{}) {
	if _, err := parser.AddCommand(name, short, short, data); err != nil {
		panic(err)
	}
}

func main() {
	var parser = flags.NewParser(nil, flags.Default)
	addCmd(parser, "run", "Execute a topology against file-based input", &runCmd{})
	addCmd(parser, "validate", "Load a topology and report contract errors without executing", &validateCmd{})
	addCmd(parser, "bench", "Drive a topology with synthetic load and report total and per-item time", &benchCmd{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
