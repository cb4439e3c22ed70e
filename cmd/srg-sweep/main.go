// Command srg-sweep fails every shared-risk group of a design file in turn
// and reports the traffic each failure takes down.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/config"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/observability"
	"github.com/signalsfoundry/netdesign/internal/sim/failure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	design  string
	output  string
	workers int
	top     int
	timeout time.Duration
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("srg-sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.design, "design", "", "Design file to analyse (.json, .yaml, .ndz)")
	fs.StringVar(&opts.output, "output", "text", "Report format: text, json or yaml")
	fs.IntVar(&opts.workers, "workers", 0, "SRGs evaluated in parallel (0 = one per CPU)")
	fs.IntVar(&opts.top, "top", 0, "Only report the N worst SRGs (0 = all)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Abort the sweep after this long (0 = no limit)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.design == "" && fs.NArg() > 0 {
		opts.design = fs.Arg(0)
	}
	if opts.design == "" {
		return opts, errors.New("a design file is required")
	}
	switch opts.output {
	case "text", "json", "yaml":
	default:
		return opts, fmt.Errorf("unknown output format %q", opts.output)
	}
	if opts.top < 0 || opts.workers < 0 {
		return opts, errors.New("-top and -workers must not be negative")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "srg-sweep: %v\n", err)
		}
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "srg-sweep: %v\n", err)
		return 2
	}
	logCfg := cfg.Logging()
	logCfg.Writer = stderr
	log := logging.New(logCfg)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.Err(err))
		return 1
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	modelOpts, err := cfg.ModelOptions()
	if err != nil {
		log.Error(ctx, "invalid model options", logging.Err(err))
		return 2
	}
	d, err := core.LoadFile(opts.design, core.WithOptions(modelOpts), core.WithLogger(log))
	if err != nil {
		log.Error(ctx, "failed to load design", logging.String("path", opts.design), logging.Err(err))
		return 1
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	report, err := failure.NewAnalyzer(log, failure.WithWorkers(opts.workers)).Sweep(ctx, d)
	if err != nil {
		log.Error(ctx, "sweep failed", logging.Err(err))
		return 1
	}
	if opts.top > 0 && len(report.Impacts) > opts.top {
		report.Impacts = report.Impacts[:opts.top]
	}

	if err := writeReport(stdout, opts.output, report); err != nil {
		log.Error(ctx, "failed to write report", logging.Err(err))
		return 1
	}
	return 0
}

func writeReport(w io.Writer, format string, report *failure.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	default:
		return writeText(w, report)
	}
}

func writeText(w io.Writer, report *failure.Report) error {
	fmt.Fprintf(w, "design %q: baseline carried traffic %.3f\n", report.Design, report.BaselineCarried)
	if len(report.Impacts) == 0 {
		_, err := fmt.Fprintln(w, "no shared-risk groups")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SRG\tAVAILABILITY\tNODES\tLINKS\tROUTES\tTREES\tLOST\tLOST %\tOVERSUBSCRIBED\t")
	for _, im := range report.Impacts {
		fmt.Fprintf(tw, "%d\t%.6f\t%d\t%d\t%d\t%d\t%.3f\t%.1f\t%d\t\n",
			im.SRGID, im.Availability, im.FailedNodes, im.FailedLinks,
			im.AffectedRoutes, im.AffectedTrees, im.LostTraffic,
			lostShare(im.LostTraffic, report.BaselineCarried), im.OversubscribedLinks)
	}
	return tw.Flush()
}

func lostShare(lost, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return 100 * lost / baseline
}
