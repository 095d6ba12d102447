// Package main provides the exprgraph CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/born-ml/exprgraph/backend"
	_ "github.com/born-ml/exprgraph/backend/cpu"
	_ "github.com/born-ml/exprgraph/backend/webgpu"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

var (
	flagBackend = flag.String("backend", "",
		fmt.Sprintf("Device to run on, as \"<type>[:<index>]\" (cpu, gpu:0). Defaults to $%s, else cpu.", backend.ConfigEnvVar))
	flagSeed = flag.Uint64("seed", 0,
		fmt.Sprintf("Random seed for dropout masks and initial values. 0 uses $%s, else %d.", backend.SeedEnvVar, backend.DefaultSeed))
	flagClip = flag.Float64("clip", 0, "Clip parameter gradients to [-clip, clip] after each backward pass. 0 disables.")
)

type command struct {
	name, usage string
	run         func(b backend.Backend, args []string) error
}

var commands = []command{
	{"version", "Show version", nil},
	{"gradcheck", "Compare analytic and finite-difference gradients of every node kind", runGradCheck},
	{"embed", "Tokenize text and average its rows of an embedding table", runEmbed},
	{"dot", "Write a demo graph in graphviz format", runDot},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "exprgraph %s\n\nUsage: exprgraph [flags] <command> [command flags]\n\nCommands:\n", version)
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]
	if name == "version" {
		fmt.Printf("exprgraph %s\n", version)
		return
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := runWithBackend(c.run, args); err != nil {
			klog.Errorf("%s: %+v", name, err)
			klog.Flush()
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

// newBackend honours the flags, falling back to the environment.
func newBackend() (backend.Backend, error) {
	var (
		b   backend.Backend
		err error
	)
	if *flagBackend == "" && *flagSeed == 0 {
		b, err = backend.New()
	} else {
		config, seed := *flagBackend, *flagSeed
		if config == "" {
			config = os.Getenv(backend.ConfigEnvVar)
		}
		if seed == 0 {
			seed = backend.DefaultSeed
		}
		b, err = backend.NewWithConfig(config, seed)
	}
	if err != nil {
		return nil, err
	}
	b.SetClip(float32(*flagClip))
	return b, nil
}

func runWithBackend(run func(backend.Backend, []string) error, args []string) error {
	b, err := newBackend()
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			klog.Warningf("closing backend %s: %v", b.Name(), err)
		}
	}()
	return run(b, args)
}
