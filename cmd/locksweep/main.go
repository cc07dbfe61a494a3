package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/courtside-data/playerlock/detect"
	"github.com/courtside-data/playerlock/internal/config"
	"github.com/courtside-data/playerlock/internal/replay"
	"github.com/courtside-data/playerlock/internal/version"
	"github.com/courtside-data/playerlock/track"
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCSVIntSlice parses a comma-separated list of ints
func parseCSVIntSlice(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// sweepResult pairs one parameter combination with the metrics its replay
// produced.
type sweepResult struct {
	smoothing    float64
	decay        float64
	hysteresisMs int
	minScore     float64

	cfg     track.Config
	metrics track.Metrics
	final   track.State
}

func main() {
	// Input and subject selection
	input := flag.String("input", "", "Detection log to sweep over (JSONL, one frame per line)")
	master := flag.String("master", "", "Detector id of the subject; most prominent detection when empty")

	// Parameter lists
	smoothingList := flag.String("smoothing", "0.4,0.5,0.6,0.7", "Comma-separated smoothing factors")
	decayList := flag.String("decay", "0.25,0.35,0.45", "Comma-separated confidence decay rates")
	hysteresisList := flag.String("hysteresis-ms", "300,500,700", "Comma-separated hysteresis windows in milliseconds")
	minScoreList := flag.String("min-score", "0.2,0.25,0.3", "Comma-separated association score floors")

	// Replay cadence and output
	tick := flag.Duration("tick", replay.DefaultTick, "Predict cadence between frames")
	output := flag.String("out", "", "Output CSV filename (defaults to locksweep-<timestamp>.csv)")

	showVersion := flag.Bool("version", false, "Print build information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("locksweep " + version.String())
		return
	}

	if *input == "" {
		log.Fatal("Detection log is required (-input)")
	}

	smoothings, err := parseCSVFloatSlice(*smoothingList)
	if err != nil {
		log.Fatalf("Invalid -smoothing list: %v", err)
	}
	decays, err := parseCSVFloatSlice(*decayList)
	if err != nil {
		log.Fatalf("Invalid -decay list: %v", err)
	}
	hysteresis, err := parseCSVIntSlice(*hysteresisList)
	if err != nil {
		log.Fatalf("Invalid -hysteresis-ms list: %v", err)
	}
	minScores, err := parseCSVFloatSlice(*minScoreList)
	if err != nil {
		log.Fatalf("Invalid -min-score list: %v", err)
	}
	if len(smoothings) == 0 || len(decays) == 0 || len(hysteresis) == 0 || len(minScores) == 0 {
		log.Fatal("Each parameter list needs at least one value")
	}

	frames, err := replay.LoadLog(*input)
	if err != nil {
		log.Fatalf("Could not load detection log: %v", err)
	}

	sel := detect.Selection{PlayerID: *master}
	if *master == "" {
		sel.Auto = true
	}

	totalCombos := len(smoothings) * len(decays) * len(hysteresis) * len(minScores)
	log.Printf("Parameter combinations: %d (smoothing: %d, decay: %d, hysteresis: %d, min-score: %d)",
		totalCombos, len(smoothings), len(decays), len(hysteresis), len(minScores))

	// Prepare output file
	filename := *output
	if filename == "" {
		filename = fmt.Sprintf("locksweep-%s.csv", time.Now().Format("20060102-150405"))
	}
	f, err := os.Create(filename)
	if err != nil {
		log.Fatalf("Could not create output file %s: %v", filename, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	// Run sweep
	results := make([]sweepResult, 0, totalCombos)
	comboNum := 0
	for _, s := range smoothings {
		for _, d := range decays {
			for _, h := range hysteresis {
				for _, ms := range minScores {
					comboNum++
					cfg := track.DefaultConfig()
					cfg.SmoothingFactor = float32(s)
					cfg.DecayRate = float32(d)
					cfg.HysteresisWindow = time.Duration(h) * time.Millisecond
					cfg.MinMatchScore = float32(ms)

					res, err := replay.Run(frames, sel, cfg, *tick)
					if err != nil {
						log.Printf("ERROR: Combination %d/%d (smoothing=%.2f, decay=%.2f, hysteresis=%dms, min-score=%.2f) failed: %v",
							comboNum, totalCombos, s, d, h, ms, err)
						continue
					}

					m := res.Metrics
					log.Printf("[%d/%d] smoothing=%.2f decay=%.2f hysteresis=%dms min-score=%.2f -> match rate %.3f, %d switches, jitter %.5f",
						comboNum, totalCombos, s, d, h, ms, m.MatchRate(), m.IDSwitches, m.CenterJitterRMS)

					results = append(results, sweepResult{
						smoothing:    s,
						decay:        d,
						hysteresisMs: h,
						minScore:     ms,
						cfg:          cfg,
						metrics:      m,
						final:        res.FinalState,
					})
				}
			}
		}
	}

	if len(results) == 0 {
		log.Fatal("No parameter combination produced a result")
	}

	rankResults(results)

	if err := writeResults(w, results); err != nil {
		log.Fatalf("Could not write results: %v", err)
	}

	best := results[0]
	log.Printf("\nSweep complete!")
	log.Printf("Results: %s", filename)
	log.Printf("Best: smoothing=%.2f decay=%.2f hysteresis=%dms min-score=%.2f (match rate %.3f, %d id switches, jitter %.5f)",
		best.smoothing, best.decay, best.hysteresisMs, best.minScore,
		best.metrics.MatchRate(), best.metrics.IDSwitches, best.metrics.CenterJitterRMS)

	bestJSON, err := json.MarshalIndent(config.FromConfig(best.cfg), "", "  ")
	if err != nil {
		log.Fatalf("Could not encode best config: %v", err)
	}
	fmt.Println(string(bestJSON))
}

// rankResults orders candidates best-first: hold the subject (match rate),
// then keep its identity (id switches), then keep the box steady (jitter).
func rankResults(results []sweepResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].metrics, results[j].metrics
		if a.MatchRate() != b.MatchRate() {
			return a.MatchRate() > b.MatchRate()
		}
		if a.IDSwitches != b.IDSwitches {
			return a.IDSwitches < b.IDSwitches
		}
		return a.CenterJitterRMS < b.CenterJitterRMS
	})
}

func writeResults(w *csv.Writer, results []sweepResult) error {
	header := []string{
		"rank", "smoothing_factor", "decay_rate", "hysteresis_ms", "min_match_score",
		"match_rate", "updates", "exact_matches", "fallback_matches", "misses",
		"max_miss_streak", "id_switches", "pending_started", "pending_aborted",
		"mean_match_score", "center_jitter_rms", "smoothed_path_length", "raw_path_length",
		"final_state",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, r := range results {
		m := r.metrics
		row := []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.3f", r.smoothing),
			fmt.Sprintf("%.3f", r.decay),
			strconv.Itoa(r.hysteresisMs),
			fmt.Sprintf("%.3f", r.minScore),
			fmt.Sprintf("%.4f", m.MatchRate()),
			strconv.Itoa(m.Updates),
			strconv.Itoa(m.ExactMatches),
			strconv.Itoa(m.FallbackMatches),
			strconv.Itoa(m.Misses),
			strconv.Itoa(m.MaxMissStreak),
			strconv.Itoa(m.IDSwitches),
			strconv.Itoa(m.PendingStarted),
			strconv.Itoa(m.PendingAborted),
			fmt.Sprintf("%.4f", m.MeanMatchScore),
			fmt.Sprintf("%.6f", m.CenterJitterRMS),
			fmt.Sprintf("%.4f", m.SmoothedPathLength),
			fmt.Sprintf("%.4f", m.RawPathLength),
			string(r.final),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
