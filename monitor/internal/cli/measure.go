package cli

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalscan/vitalscan/monitor/internal/api"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/monitor/internal/signal"
	"github.com/vitalscan/vitalscan/monitor/internal/store"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

func NewMeasureCmd(deps *Dependencies) *cobra.Command {
	var duration time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "measure <kind>",
		Short:     "Run one measurement and print the reading",
		Long:      "Collect from the sensor for the configured duration, estimate the vital and print it.\nKinds: spo2-hr, respiratory, blood-pressure. Ctrl+C cancels.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			formatter := NewFormatter(cmd.OutOrStdout())
			return runMeasure(cmd.Context(), deps, kind, duration, asJSON, formatter)
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Collection window (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")

	return cmd
}

func runMeasure(ctx context.Context, deps *Dependencies, kind types.Kind, duration time.Duration, asJSON bool, formatter *Formatter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := deps.config()

	mcfg := cfg.Measurement
	if duration > 0 {
		durations := make(map[types.Kind]time.Duration, len(mcfg.Durations)+1)
		for k, v := range mcfg.Durations {
			durations[k] = v
		}
		durations[kind] = duration
		mcfg.Durations = durations
	}

	collector := deps.Collector
	if collector == nil {
		var err error
		if collector, err = sensor.New(cfg.Sensor); err != nil {
			return err
		}
	}

	seed := mcfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := vitals.NewEngine(signal.Toolkit{}, rand.New(rand.NewSource(seed)), vitals.WithFrameRate(mcfg.FrameRate))
	sess := session.New(collector, engine, store.New(0, 0), mcfg)

	if !asJSON {
		formatter.MeasurementStarted(kind, mcfg.Duration(kind))
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	if !asJSON {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reportProgress(sess, formatter, mcfg.ProgressInterval, done)
		}()
	}

	_, err := sess.Start(ctx, kind)
	close(done)
	wg.Wait()
	if err != nil {
		return err
	}

	reading := api.BuildState(sess.State()).Current
	if asJSON {
		enc := json.NewEncoder(formatter.w)
		enc.SetIndent("", "  ")
		return enc.Encode(reading)
	}
	formatter.Reading(reading)
	return nil
}

// reportProgress prints each progress change until done is closed.
func reportProgress(sess *session.Session, formatter *Formatter, interval time.Duration, done <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()

	last := -1
	for {
		select {
		case <-done:
			return
		case <-t.C:
			st := sess.State()
			if st.Phase.Active() && st.Progress != last {
				last = st.Progress
				formatter.Progress(st.Phase, st.Progress)
			}
		}
	}
}

func kindNames() []string {
	names := make([]string, len(types.Kinds))
	for i, k := range types.Kinds {
		names[i] = string(k)
	}
	return names
}
