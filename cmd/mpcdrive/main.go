package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mpcdrive/internal/analysis"
	"mpcdrive/internal/config"
	"mpcdrive/internal/export"
	"mpcdrive/internal/metrics"
	"mpcdrive/internal/mpc"
	"mpcdrive/internal/optim"
	"mpcdrive/internal/server"
	"mpcdrive/internal/sim"
	"mpcdrive/internal/storage"
	"mpcdrive/internal/telemetry"
	"mpcdrive/internal/tui"
)

var (
	configFile  string
	dataDir     string
	verbose     bool
	addr        string
	cycles      int
	targetSpeed float64
	latency     float64
	fallback    string
	save        bool
	plot        bool
	jsonOut     bool
	plotHeight  int
	inputFile   string
	outFile     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mpcdrive",
		Short: "receding-horizon trajectory controller for a simulated car",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return tui.Run(cfg, newLogger(io.Discard))
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mpcdrive", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Float64Var(&targetSpeed, "target-speed", 0, "cruise speed")
	rootCmd.PersistentFlags().Float64Var(&latency, "latency", 0, "actuation latency in seconds")
	rootCmd.PersistentFlags().StringVar(&fallback, "fallback", "", "fallback policy (pid, hold, trust)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "drive the simulator over a websocket",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":4567", "listen address")

	simCmd := &cobra.Command{
		Use:   "sim [track]",
		Short: "run a headless closed-loop simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSim,
	}
	simCmd.Flags().IntVar(&cycles, "cycles", 300, "control cycles to run")
	simCmd.Flags().BoolVar(&save, "save", false, "archive the run")
	simCmd.Flags().BoolVar(&plot, "plot", false, "plot the cross-track trace")
	simCmd.Flags().BoolVar(&jsonOut, "json", false, "dump the full run as json")
	simCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height in rows")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run every preset track and compare metrics",
		RunE:  runSweep,
	}
	sweepCmd.Flags().IntVar(&cycles, "cycles", 300, "control cycles per track")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive terminal view",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return tui.Run(cfg, newLogger(io.Discard))
		},
	}

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "run one control step on a telemetry record",
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&inputFile, "input", "-", "telemetry json file, - for stdin")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot an archived run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height in rows")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "oscillation analysis of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	svgCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render an archived run as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVar(&outFile, "out", "", "output file, defaults to <run_id>.svg")

	tuneCmd := &cobra.Command{
		Use:   "tune [track]",
		Short: "grid-search cost weights on a track",
		Args:  cobra.ExactArgs(1),
		RunE:  runTune,
	}
	tuneCmd.Flags().IntVar(&cycles, "cycles", 60, "control cycles per candidate")

	rootCmd.AddCommand(serveCmd, simCmd, sweepCmd, liveCmd, solveCmd, listCmd, plotCmd, analyzeCmd, svgCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// loadConfig merges defaults, the optional config file and any CLI
// overrides, flags winning over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("target-speed") {
		cfg.TargetSpeed = targetSpeed
	}
	if cmd.Flags().Changed("latency") {
		cfg.Latency = latency
	}
	if cmd.Flags().Changed("fallback") {
		cfg.Fallback = fallback
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return server.New(cfg, newLogger(os.Stderr)).ListenAndServe(ctx, addr)
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	track, err := sim.ByName(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	runner := sim.NewRunner(cfg, track, newLogger(os.Stderr))
	for _, m := range metrics.Standard(cfg.TargetSpeed) {
		runner.AddMetric(m)
	}
	result, err := runner.Run(ctx, cycles)
	if err != nil {
		return err
	}

	if jsonOut {
		return storage.ExportJSON(os.Stdout, args[0], cfg.TargetSpeed, cfg.Latency, result)
	}

	printMetrics(args[0], result)
	if plot {
		plotSamples(result.Samples)
	}
	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(args[0], cfg.TargetSpeed, cfg.Latency, result)
		if err != nil {
			return err
		}
		fmt.Printf("\nsaved run %s\n", runID)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tracks := map[string]sim.Track{}
	for _, name := range []string{"straight", "wave", "loop"} {
		t, err := sim.ByName(name)
		if err != nil {
			return err
		}
		tracks[name] = t
	}
	ctx, cancel := signalContext()
	defer cancel()

	results, err := sim.NewSweep(cfg, tracks, newLogger(os.Stderr)).Run(ctx, cycles)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "track\tmean |cte|\tspeed rms\teffort\tfallbacks")
	for _, name := range []string{"straight", "wave", "loop"} {
		r := results[name]
		if r == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%.3f\t%d/%d\n",
			name,
			r.Metrics["mean_abs_cte"],
			r.Metrics["speed_rms_error"],
			r.Metrics["control_effort"],
			r.Failures, r.Cycles)
	}
	return w.Flush()
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var data []byte
	if inputFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(inputFile)
	}
	if err != nil {
		return err
	}
	var tm telemetry.Telemetry
	if err := json.Unmarshal(data, &tm); err != nil {
		return fmt.Errorf("parse telemetry: %w", err)
	}

	ctrl := mpc.NewController(cfg, newLogger(os.Stderr))
	result, err := ctrl.Step(mpc.Input{
		WaypointsX: tm.PtsX,
		WaypointsY: tm.PtsY,
		X:          tm.X,
		Y:          tm.Y,
		Psi:        tm.Psi,
		Speed:      tm.Speed,
		PrevSteer:  tm.SteeringAngle,
		PrevThrot:  tm.Throttle,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Steer     float64     `json:"steer"`
		Throttle  float64     `json:"throttle"`
		Status    string      `json:"status"`
		Cost      float64     `json:"cost"`
		Fallback  bool        `json:"fallback"`
		ElapsedMs float64     `json:"elapsed_ms"`
		Predicted []mpc.Point `json:"predicted"`
	}{
		Steer:     result.Steer,
		Throttle:  result.Throttle,
		Status:    result.Status.String(),
		Cost:      result.Cost,
		Fallback:  result.Fallback,
		ElapsedMs: float64(result.Elapsed.Microseconds()) / 1000,
		Predicted: result.Predicted,
	})
}

func runTune(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	track, err := sim.ByName(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	log := newLogger(io.Discard)
	search := optim.NewGridSearch(
		[]string{"cross_track", "heading", "steer_rate"},
		[][]float64{{300, 1000, 3000}, {300, 1000, 3000}, {3, 10, 30}},
	)
	evaluated := 0
	best, score, err := search.Search(ctx, func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := *base
		cfg.Weights.CrossTrack = params["cross_track"]
		cfg.Weights.Heading = params["heading"]
		cfg.Weights.SteerRate = params["steer_rate"]

		runner := sim.NewRunner(&cfg, track, log)
		m := metrics.NewMeanAbsCrossTrack()
		runner.AddMetric(m)
		result, err := runner.Run(ctx, cycles)
		if err != nil {
			return 0, err
		}
		evaluated++
		fmt.Printf("  cte=%-8.4f fallbacks=%-3d %v\n", m.Value(), result.Failures, params)
		// A candidate that misses deadlines is no good however well it tracks.
		return m.Value() * (1 + float64(result.Failures)), nil
	})
	if err != nil {
		return err
	}
	if best == nil {
		return fmt.Errorf("no candidate finished")
	}
	fmt.Printf("\nbest after %d candidates (score %.4f):\n", evaluated, score)
	for _, name := range []string{"cross_track", "heading", "steer_rate"} {
		fmt.Printf("  %-12s %.0f\n", name, best[name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no archived runs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\ttrack\tcycles\tfallbacks\tmean |cte|\tdate")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.4f\t%s\n",
			r.ID, r.Track, r.Cycles, r.Failures,
			r.Metrics["mean_abs_cte"],
			r.Timestamp.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	if len(samples) < 2 {
		return fmt.Errorf("run %s has no samples", args[0])
	}
	fmt.Printf("%s  track=%s cycles=%d\n\n", meta.ID, meta.Track, meta.Cycles)
	plotSamples(samples)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	if len(samples) < 4 {
		return fmt.Errorf("run %s has too few samples to analyze", args[0])
	}
	period := samples[1].T - samples[0].T
	if period <= 0 {
		period = 0.1
	}

	cte := make([]float64, len(samples))
	steer := make([]float64, len(samples))
	for i, s := range samples {
		cte[i] = s.CrossTrack
		steer[i] = s.Steer
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "signal\tdominant freq (Hz)\tmagnitude")
	for _, sig := range []struct {
		name string
		data []float64
	}{{"cte", cte}, {"steer", steer}} {
		freq, mag := analysis.Dominant(sig.data, period)
		fmt.Fprintf(w, "%s\t%.3f\t%.4f\n", sig.name, freq, mag)
	}
	return w.Flush()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(args[0])
	if err != nil {
		return err
	}
	track, err := sim.ByName(meta.Track)
	if err != nil {
		return err
	}
	svg := export.PathSVG(track, samples, 1000, 600)
	if svg == "" {
		return fmt.Errorf("run %s has too few samples to render", args[0])
	}
	path := outFile
	if path == "" {
		path = args[0] + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func plotSamples(samples []metrics.Sample) {
	cte := make([]float64, len(samples))
	speed := make([]float64, len(samples))
	for i, s := range samples {
		cte[i] = s.CrossTrack
		speed[i] = s.Speed
	}
	fmt.Println(asciigraph.Plot(cte,
		asciigraph.Height(plotHeight),
		asciigraph.Width(80),
		asciigraph.Caption("cross-track error")))
	fmt.Println()
	fmt.Println(asciigraph.Plot(speed,
		asciigraph.Height(plotHeight),
		asciigraph.Width(80),
		asciigraph.Caption("speed")))
}

func printMetrics(track string, result *sim.Result) {
	fmt.Printf("track %s: %d cycles, %d fallbacks\n\n", track, result.Cycles, result.Failures)
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.4f\n", name, result.Metrics[name])
	}
	w.Flush()
}
