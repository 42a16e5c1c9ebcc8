package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/entry"
	"github.com/zeusync/warden/internal/core/observability/metrics"
	"github.com/zeusync/warden/internal/core/sequence"
	"github.com/zeusync/warden/internal/game"
	"github.com/zeusync/warden/internal/replay"
)

var errMetricsDisabled = errors.New("--metrics needs metrics.enabled in the configuration")

type replayOptions struct {
	metrics bool
	json    bool
}

func newReplayCommand(configPath *string) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay <script>",
		Short: "Replay a recorded event script",
		Long: `Replay feeds the events of a YAML script through the detection engine on a
simulated clock and prints one line per completed detection, followed by a summary.`,
		Example: `  warden replay testdata/flight.yaml
  warden replay --config warden.yaml --metrics session.yaml
  warden replay --json session.yaml | jq .detection`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print metrics in Prometheus text format after the replay")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print reports and the summary as JSON lines")
	return cmd
}

func runReplay(ctx context.Context, out io.Writer, configPath, scriptPath string, opts replayOptions) error {
	f, err := os.Open(scriptPath)
	if err != nil {
		return err
	}
	script, err := replay.Load(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	clock := sequence.NewManualClock(0)
	reports := &collector{}
	engine, cleanup, err := bootstrap(configPath, clock, reports)
	if err != nil {
		return err
	}
	defer cleanup()
	prom, _ := engine.Metrics.(*metrics.Prometheus)
	if opts.metrics && prom == nil {
		return errMetricsDisabled
	}

	registry := replay.NewRegistry()
	replay.Register[game.Move](registry)
	replay.Register[game.Attack](registry)

	runner := &replay.Runner{Manager: engine.Manager, Clock: clock, Registry: registry, Log: engine.Logger}
	res, err := runner.Run(ctx, script)
	if err != nil {
		return err
	}

	flagged := reports.sorted()
	if opts.json {
		err = writeJSON(out, flagged, res)
	} else {
		writeText(out, flagged, res)
	}
	if err != nil {
		return err
	}

	if opts.metrics {
		return writeMetrics(out, prom)
	}
	return nil
}

func writeText(out io.Writer, flagged []detection.Report, res replay.Result) {
	for _, r := range flagged {
		fmt.Fprintf(out, "%-10s %-8s player=%s steps=%d started=%s completed=%s\n",
			r.Detection, r.Version, playerName(r.Entity), r.Steps, r.StartedAt, r.CompletedAt)
	}
	fmt.Fprintf(out, "events=%d batches=%d ticks=%d faults=%d reports=%d\n",
		res.Events, res.Batches, res.Ticks, len(res.Faults), len(flagged))
	for _, fault := range res.Faults {
		fmt.Fprintln(out, "fault:", fault)
	}
}

type reportLine struct {
	ID          uuid.UUID      `json:"id"`
	Detection   string         `json:"detection"`
	Version     string         `json:"version"`
	Entity      uuid.UUID      `json:"entity"`
	Player      string         `json:"player"`
	Steps       int            `json:"steps"`
	StartedMS   int64          `json:"started_ms"`
	CompletedMS int64          `json:"completed_ms"`
	Captures    map[string]any `json:"captures,omitempty"`
}

type summaryLine struct {
	Events  int      `json:"events"`
	Batches int      `json:"batches"`
	Ticks   int      `json:"ticks"`
	Reports int      `json:"reports"`
	Faults  []string `json:"faults"`
}

func writeJSON(out io.Writer, flagged []detection.Report, res replay.Result) error {
	enc := json.NewEncoder(out)
	for _, r := range flagged {
		line := reportLine{
			ID:          r.ID,
			Detection:   r.Detection,
			Version:     r.Version,
			Entity:      r.Entity.UniqueID(),
			Player:      playerName(r.Entity),
			Steps:       r.Steps,
			StartedMS:   r.StartedAt.Milliseconds(),
			CompletedMS: r.CompletedAt.Milliseconds(),
			Captures:    make(map[string]any, len(r.Captures)),
		}
		for k, v := range r.Captures {
			line.Captures[string(k)] = v
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}

	summary := summaryLine{
		Events:  res.Events,
		Batches: res.Batches,
		Ticks:   res.Ticks,
		Reports: len(flagged),
		Faults:  make([]string, 0, len(res.Faults)),
	}
	for _, fault := range res.Faults {
		summary.Faults = append(summary.Faults, fault.Error())
	}
	return enc.Encode(summary)
}

func playerName(e entry.Entry) string {
	if p, ok := entry.Resolve[*game.Player](e); ok {
		return p.Name
	}
	return e.UniqueID().String()
}

func writeMetrics(out io.Writer, p *metrics.Prometheus) error {
	families, err := p.Registry().Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}

// collector is the resolver of a replay: it keeps every report.
type collector struct {
	mu      sync.Mutex
	reports []detection.Report
}

func (c *collector) Resolve(_ context.Context, r detection.Report) error {
	c.mu.Lock()
	c.reports = append(c.reports, r)
	c.mu.Unlock()
	return nil
}

func (c *collector) sorted() []detection.Report {
	c.mu.Lock()
	out := append([]detection.Report(nil), c.reports...)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt < out[j].CompletedAt })
	return out
}
