package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharge/core/clock"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/core/smartcharging"
)

type scheduleOptions struct {
	file             string
	connector        int
	at               string
	ceiling          float64
	connectorCeiling float64
	scan             string
	output           string
}

var scheduleOpts scheduleOptions

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute a composite schedule from a profile file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return computeSchedule(cmd.Context(), cmd.OutOrStdout(), scheduleOpts)
	},
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVarP(&scheduleOpts.file, "file", "f", "", "JSON or YAML list of charging profiles")
	f.IntVar(&scheduleOpts.connector, "connector", 0, "connector id, 0 for the whole station")
	f.StringVar(&scheduleOpts.at, "at", "", "evaluation time (RFC3339), now when empty")
	f.Float64Var(&scheduleOpts.ceiling, "ceiling", smartcharging.DefaultConnectorCeiling, "ceiling of the requested connector")
	f.Float64Var(&scheduleOpts.connectorCeiling, "connector-ceiling", smartcharging.DefaultConnectorCeiling, "ceiling of each physical connector")
	f.StringVar(&scheduleOpts.scan, "scan", smartcharging.ScanLatestStarted.String(), "limit query mode: latest or first_match")
	f.StringVarP(&scheduleOpts.output, "output", "o", "table", "output format: table, json or yaml")
	_ = scheduleCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(scheduleCmd)
}

type scheduleEntry struct {
	TS    int     `json:"ts" yaml:"ts"`
	Start string  `json:"start" yaml:"start"`
	Limit float64 `json:"limit" yaml:"limit"`
}

type scheduleOutput struct {
	ConnectorID int             `json:"connector_id" yaml:"connector_id"`
	At          time.Time       `json:"at" yaml:"at"`
	Schedule    []scheduleEntry `json:"schedule" yaml:"schedule"`
	Limit       *float64        `json:"limit,omitempty" yaml:"limit,omitempty"`
}

func computeSchedule(ctx context.Context, w io.Writer, o scheduleOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	at := time.Now()
	if o.at != "" {
		t, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		at = t
	}
	mode, err := smartcharging.ParseScanMode(o.scan)
	if err != nil {
		return err
	}
	profiles, err := loadProfiles(o.file)
	if err != nil {
		return err
	}
	reg := registry.New(nil)
	for _, p := range profiles {
		if _, err := reg.Add(ctx, p); err != nil {
			return fmt.Errorf("profile %d: %w", p.ProfileID, err)
		}
	}
	set, err := reg.Profiles(ctx)
	if err != nil {
		return err
	}

	now := clock.At(at)
	engine := smartcharging.NewEngine(clock.Fixed{T: at},
		smartcharging.WithConnectorCeiling(o.connectorCeiling),
		smartcharging.WithScanMode(mode))
	sched, err := engine.CompositeScheduleAt(now, o.connector, set, o.ceiling)
	if err != nil {
		return err
	}
	out := scheduleOutput{ConnectorID: o.connector, At: at, Schedule: make([]scheduleEntry, 0, len(sched))}
	for _, e := range sched {
		out.Schedule = append(out.Schedule, scheduleEntry{TS: e.TS, Start: clockTime(e.TS), Limit: e.Limit.Wire()})
	}
	if l, ok := smartcharging.CurrentLimit(sched, now.SecondsFromMidnight, mode); ok {
		v := l.Wire()
		out.Limit = &v
	}
	return render(w, o.output, out)
}

func clockTime(ts int) string {
	return fmt.Sprintf("%02d:%02d:%02d", ts/3600, ts%3600/60, ts%60)
}

func render(w io.Writer, format string, out scheduleOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(out)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "START\tTS\tLIMIT")
		for _, e := range out.Schedule {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Start, e.TS, model.LimitFromWire(e.Limit))
		}
		if out.Limit != nil {
			_, _ = fmt.Fprintf(tw, "\ncurrent limit on connector %d: %s\n", out.ConnectorID, model.LimitFromWire(*out.Limit))
		} else {
			_, _ = fmt.Fprintf(tw, "\nno limit known on connector %d\n", out.ConnectorID)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
