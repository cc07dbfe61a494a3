package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/courtside-data/playerlock/detect"
	"github.com/courtside-data/playerlock/geom"
	"github.com/courtside-data/playerlock/internal/config"
	"github.com/courtside-data/playerlock/internal/replay"
	"github.com/courtside-data/playerlock/internal/report"
	"github.com/courtside-data/playerlock/internal/sessiondb"
	"github.com/courtside-data/playerlock/internal/version"
	"github.com/courtside-data/playerlock/track"
)

func main() {
	// Input and subject selection
	input := flag.String("input", "", "Detection log to replay (JSONL, one frame per line)")
	master := flag.String("master", "", "Detector id of the subject to lock onto")
	selectBox := flag.String("select-box", "", "Seed box 'x,y,w,h' in normalized units; the nearest detection is chosen")
	auto := flag.Bool("auto", false, "Pick the most prominent detection automatically (default when nothing else is given)")

	// Tuning and replay cadence
	configPath := flag.String("config", "", "Tuning JSON overlaying the built-in defaults")
	tick := flag.Duration("tick", replay.DefaultTick, "Predict cadence between frames")

	// Outputs
	dbPath := flag.String("db", "", "SQLite file to persist the session into")
	reportDir := flag.String("report", "", "Directory for PNG time series and the HTML report")

	showVersion := flag.Bool("version", false, "Print build information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("replay " + version.String())
		return
	}

	if *input == "" {
		log.Fatal("Detection log is required (-input)")
	}

	sel, err := buildSelection(*master, *selectBox, *auto)
	if err != nil {
		log.Fatalf("Invalid selection: %v", err)
	}

	cfg := track.DefaultConfig()
	if *configPath != "" {
		tuning, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Could not load config %s: %v", *configPath, err)
		}
		cfg = tuning.Apply(cfg)
	}

	frames, err := replay.LoadLog(*input)
	if err != nil {
		log.Fatalf("Could not load detection log: %v", err)
	}

	res, err := replay.Run(frames, sel, cfg, *tick)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	metricsJSON, err := json.MarshalIndent(res.Metrics, "", "  ")
	if err != nil {
		log.Fatalf("Could not encode metrics: %v", err)
	}

	var sess *sessiondb.Session
	if *dbPath != "" {
		sess = persistSession(*dbPath, *input, cfg, res, metricsJSON)
	}

	if *reportDir != "" {
		writeReports(*reportDir, sess, res)
	}

	fmt.Println(string(metricsJSON))
}

// buildSelection maps the three selection flags onto one strategy. At most one
// may be given; with none, automatic prominence is implied.
func buildSelection(master, boxSpec string, auto bool) (detect.Selection, error) {
	given := 0
	if master != "" {
		given++
	}
	if boxSpec != "" {
		given++
	}
	if auto {
		given++
	}
	if given > 1 {
		return detect.Selection{}, fmt.Errorf("-master, -select-box and -auto are mutually exclusive")
	}

	switch {
	case master != "":
		return detect.Selection{PlayerID: master}, nil
	case boxSpec != "":
		box, err := parseBox(boxSpec)
		if err != nil {
			return detect.Selection{}, err
		}
		return detect.Selection{Box: &box}, nil
	default:
		return detect.Selection{Auto: true}, nil
	}
}

// parseBox reads "x,y,w,h" with a top-left origin in normalized units
func parseBox(s string) (geom.Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geom.Box{}, fmt.Errorf("box must be 'x,y,w,h', got '%s'", s)
	}
	vals := make([]float32, 4)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return geom.Box{}, fmt.Errorf("invalid box component '%s': %w", p, err)
		}
		vals[i] = float32(v)
	}
	return geom.Box{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// persistSession writes the whole replay into the session database and returns
// the stored session row. The effective tuning is captured alongside so a run
// can be reproduced without the original config file.
func persistSession(path, source string, cfg track.Config, res *replay.Result, metricsJSON json.RawMessage) *sessiondb.Session {
	cfgJSON, err := json.Marshal(config.FromConfig(cfg))
	if err != nil {
		log.Fatalf("Could not encode config: %v", err)
	}

	db, err := sessiondb.Open(path)
	if err != nil {
		log.Fatalf("Could not open session database %s: %v", path, err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatalf("Could not migrate session database: %v", err)
	}

	store := sessiondb.NewSessionStore(db)
	sess := &sessiondb.Session{
		MasterID:   res.MasterID,
		Source:     source,
		ConfigJSON: cfgJSON,
	}
	if err := store.Create(sess); err != nil {
		log.Fatalf("Could not create session: %v", err)
	}

	for _, o := range res.Observations {
		o.SessionID = sess.SessionID
	}
	if err := store.InsertObservations(res.Observations); err != nil {
		log.Fatalf("Could not store observations: %v", err)
	}
	for _, ev := range res.Events {
		ev.SessionID = sess.SessionID
		if err := store.InsertEvent(ev); err != nil {
			log.Fatalf("Could not store event: %v", err)
		}
	}

	if err := store.Finish(sess.SessionID, time.Now().UnixNano(), string(res.FinalState), metricsJSON); err != nil {
		log.Fatalf("Could not finish session: %v", err)
	}

	log.Printf("Stored session %s in %s (%d observations, %d events)",
		sess.SessionID, path, len(res.Observations), len(res.Events))
	return sess
}

// writeReports renders the PNG time series and the HTML page into dir. sess
// may be nil when the run was not persisted.
func writeReports(dir string, sess *sessiondb.Session, res *replay.Result) {
	if err := report.WritePlots(dir, res.Observations, res.Predictions); err != nil {
		log.Fatalf("Could not write plots: %v", err)
	}
	htmlPath := filepath.Join(dir, "session.html")
	if err := report.WriteHTML(htmlPath, sess, res.Observations); err != nil {
		log.Fatalf("Could not write HTML report: %v", err)
	}

	sum := report.Summarize(res.Observations)
	log.Printf("Report written to %s (match rate %.3f over %d updates)", dir, sum.MatchRate, sum.Updates)
}
