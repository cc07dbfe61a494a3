package track

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"

	"github.com/courtside-data/playerlock/detect"
	"github.com/courtside-data/playerlock/geom"
)

// State describes how much the lock currently trusts its estimate.
type State string

const (
	StateActive      State = "active"      // matched recently, estimate trusted
	StateTentative   State = "tentative"   // short miss streak, still predicting
	StateLost        State = "lost"        // long miss streak, estimate decaying
	StateReacquiring State = "reacquiring" // waiting for the subject to reappear
)

// IsAlive reports whether the estimate is fresh enough to drive an overlay.
func (s State) IsAlive() bool { return s == StateActive || s == StateTentative }

// Lock tracks one selected subject through noisy, unstably-labeled detector
// output. Build one per subject-selection event and drive it from a single
// goroutine: Update on every detector batch, Predict at render rate. The lock
// holds no internal synchronization and performs no I/O; timeline positions
// are offsets into the video and must never move backward across Update
// calls.
type Lock struct {
	cfg Config

	masterID string // identity the lock represents, fixed at selection
	boundID  string // detector id currently believed to label the subject

	state State

	// Motion state in normalized coordinates. Mutated only by Update.
	cx, cy float32 // smoothed center
	vx, vy float32 // smoothed velocity, units/s
	w, h   float32 // smoothed extents
	conf   float32

	seedPos time.Duration
	seedBox geom.Box

	lastUpdatePos time.Duration // previous Update call
	lastMatchPos  time.Duration // previous accepted match
	misses        int           // consecutive unmatched updates

	// Pending identity rebind under hysteresis. Empty pendingID means none.
	pendingID    string
	pendingSince time.Duration

	hist      *history
	collector EventCollector

	m metricsAccum
}

// NewLock builds a lock around a seed detection taken at timeline position
// seedPos. masterID names the identity the lock represents; when empty, the
// seed's detector id is used. The seed must carry a valid normalized box.
func NewLock(masterID string, seed detect.Detection, seedPos time.Duration, cfg Config) (*Lock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lock config: %w", err)
	}
	if seedPos < 0 {
		return nil, fmt.Errorf("seed position %v: %w", seedPos, detect.ErrInvalidTimestamp)
	}
	if err := seed.Box().Validate(); err != nil {
		return nil, fmt.Errorf("seed detection: %w", err)
	}
	if masterID == "" {
		masterID = seed.ID
	}

	l := &Lock{
		cfg:           cfg,
		masterID:      masterID,
		boundID:       seed.ID,
		state:         StateActive,
		cx:            seed.CenterX,
		cy:            seed.CenterY,
		w:             seed.Width,
		h:             seed.Height,
		conf:          seed.Confidence,
		seedPos:       seedPos,
		lastUpdatePos: seedPos,
		lastMatchPos:  seedPos,
		hist:          newHistory(cfg.HistorySize),
	}
	l.seedBox = geom.FromCenter(l.cx, l.cy, l.w, l.h).Clamp(cfg.MinBoxSize)
	l.hist.add(seed, seedPos)
	l.m.lastRawCX, l.m.lastRawCY = seed.CenterX, seed.CenterY
	return l, nil
}

// Update feeds one detector batch at timeline position pos and returns the
// current box estimate. ok is false while confidence sits below the reporting
// threshold. A negative or regressing pos is rejected with an error wrapping
// detect.ErrInvalidTimestamp; state is untouched and the last known box still
// comes back.
func (l *Lock) Update(dets []detect.Detection, pos time.Duration) (geom.Box, bool, error) {
	if pos < 0 || pos < l.lastUpdatePos {
		box, ok := l.CurrentBox()
		return box, ok, fmt.Errorf("update at %v after %v: %w", pos, l.lastUpdatePos, detect.ErrInvalidTimestamp)
	}

	step := pos - l.lastUpdatePos
	dt := float32(step.Seconds())
	l.m.updates++
	l.m.addStateTime(l.state, step)

	// Step 1: dead-reckon to the batch time so matching compares candidates
	// against where the subject should be now, not where it last was. The
	// pre-advance center feeds velocity recovery and the continuity bonus.
	preCX, preCY := l.cx, l.cy
	l.cx = geom.Clamp01(l.cx + l.vx*dt)
	l.cy = geom.Clamp01(l.cy + l.vy*dt)

	// Step 2: match, exact id first, geometry fallback under hysteresis.
	cand, exact, score, matched := l.match(dets, preCX, preCY, pos)

	if matched {
		// Step 3: fold the observation in.
		l.accept(cand, exact, score, preCX, preCY, dt, pos)
	} else {
		// Step 4: decay while unobserved.
		l.miss(dt, pos)
	}

	// Step 5: bookkeeping for output steadiness metrics.
	jx := float64(l.cx - preCX)
	jy := float64(l.cy - preCY)
	stepLen := math32.Hypot(l.cx-preCX, l.cy-preCY)
	l.m.jitterSqSum += jx*jx + jy*jy
	l.m.jitterN++
	l.m.smoothPath += float64(stepLen)

	l.lastUpdatePos = pos
	box, vis := l.CurrentBox()
	return box, vis, nil
}

// match finds this batch's winning candidate. Exact id hits bypass scoring
// and hysteresis entirely: the detector reaffirming the bound label is the
// strongest signal available. Geometry fallbacks carrying a different label
// are held pending until they have stayed the best match for the hysteresis
// window.
func (l *Lock) match(dets []detect.Detection, preCX, preCY float32, pos time.Duration) (detect.Detection, bool, float32, bool) {
	if l.boundID != "" {
		for _, d := range dets {
			if d.ID == l.boundID {
				l.abortPending()
				l.emitMatch(d.ID, 1, true, true, pos)
				return d, true, 1, true
			}
		}
	}

	best := -1
	var bestScore float32
	for i := range dets {
		if dets[i].Box().Validate() != nil {
			continue
		}
		if s := l.scoreCandidate(dets[i], preCX, preCY); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < l.cfg.MinMatchScore {
		// A frame with no plausible candidate breaks pending continuity.
		l.abortPending()
		return detect.Detection{}, false, 0, false
	}
	cand := dets[best]

	switch {
	case cand.ID == l.boundID:
		// Only reachable when both ids are empty: an unlabeled detector
		// matched by geometry alone.
		l.emitMatch(cand.ID, bestScore, false, true, pos)
		return cand, false, bestScore, true

	case cand.ID == "":
		// Unlabeled candidate: positional evidence without an identity
		// claim, so nothing to rebind.
		l.emitMatch(cand.ID, bestScore, false, true, pos)
		return cand, false, bestScore, true

	case l.boundID == "":
		// First labeled sighting adopts the label outright.
		l.boundID = cand.ID
		l.emitMatch(cand.ID, bestScore, false, true, pos)
		return cand, false, bestScore, true
	}

	// Different label: hold it pending. The lock takes the miss path until
	// the rebind commits, so an unconfirmed look-alike cannot drag the box.
	if cand.ID != l.pendingID {
		l.abortPending()
		l.pendingID = cand.ID
		l.pendingSince = pos
		l.m.pendingStarted++
		l.emitMatch(cand.ID, bestScore, false, false, pos)
		return detect.Detection{}, false, 0, false
	}
	if pos-l.pendingSince < l.cfg.HysteresisWindow {
		l.emitMatch(cand.ID, bestScore, false, false, pos)
		return detect.Detection{}, false, 0, false
	}

	old := l.boundID
	l.boundID = cand.ID
	l.pendingID = ""
	l.m.idSwitches++
	l.emitIDSwitch(old, cand.ID, pos)
	l.emitMatch(cand.ID, bestScore, false, true, pos)
	return cand, false, bestScore, true
}

func (l *Lock) abortPending() {
	if l.pendingID != "" {
		l.pendingID = ""
		l.m.pendingAborted++
	}
}

// accept folds an accepted observation into the motion state.
func (l *Lock) accept(cand detect.Detection, exact bool, score float32, preCX, preCY, dt float32, pos time.Duration) {
	a := l.cfg.SmoothingFactor
	l.cx += a * (cand.CenterX - l.cx)
	l.cy += a * (cand.CenterY - l.cy)
	l.w += a * (cand.Width - l.w)
	l.h += a * (cand.Height - l.h)

	// Velocity comes from the pre-advance position over this frame's dt;
	// measuring from the already-advanced position would double-count the
	// dead-reckoned motion.
	if dt > 0 {
		rvx := (cand.CenterX - preCX) / dt
		rvy := (cand.CenterY - preCY) / dt
		b := l.cfg.VelocitySmoothing
		l.vx += b * (rvx - l.vx)
		l.vy += b * (rvy - l.vy)
		l.vx, l.vy = clampVelocity(l.vx, l.vy, l.cfg.MaxVelocity)
	}

	l.conf = math32.Max(l.conf, math32.Max(l.cfg.ConfidenceFloor, cand.Confidence))

	if l.state != StateActive {
		l.setState(StateActive, pos, "match accepted")
	}
	l.misses = 0
	l.lastMatchPos = pos
	l.hist.add(cand, pos)

	if exact {
		l.m.exactMatches++
	} else {
		l.m.fallbackMatches++
	}
	l.m.scoreSum += float64(score)
	l.m.scoreN++
	l.m.rawPath += float64(math32.Hypot(cand.CenterX-l.m.lastRawCX, cand.CenterY-l.m.lastRawCY))
	l.m.lastRawCX, l.m.lastRawCY = cand.CenterX, cand.CenterY
}

// miss decays the estimate and advances the lifecycle.
func (l *Lock) miss(dt float32, pos time.Duration) {
	l.misses++
	l.m.misses++
	if l.misses > l.m.maxMissStreak {
		l.m.maxMissStreak = l.misses
	}

	if dt > 0 {
		l.conf *= math32.Pow(1-l.cfg.DecayRate, dt)
		// Velocity is least trustworthy exactly while unobserved; damp it so
		// dead-reckoning cannot run away during an occlusion.
		damp := math32.Pow(l.cfg.MissVelocityDamping, dt)
		l.vx *= damp
		l.vy *= damp
	}

	elapsed := pos - l.lastMatchPos
	target := l.state
	switch {
	case elapsed >= l.cfg.ReacquireAfter:
		target = StateReacquiring
	case elapsed >= l.cfg.LostAfter:
		target = StateLost
	case elapsed >= l.cfg.TentativeAfter:
		target = StateTentative
	}
	if target != l.state {
		l.setState(target, pos, fmt.Sprintf("no match for %v", elapsed.Round(time.Millisecond)))
	}
}

func (l *Lock) setState(to State, pos time.Duration, reason string) {
	from := l.state
	l.state = to
	l.emitTransition(from, to, pos, reason)
}

// CurrentBox returns the smoothed estimate as a top-left box. ok is false
// while confidence sits below ConfidenceThreshold; callers hide the overlay
// instead of drawing a stale guess.
func (l *Lock) CurrentBox() (geom.Box, bool) {
	box := geom.FromCenter(l.cx, l.cy, l.w, l.h).Clamp(l.cfg.MinBoxSize)
	return box, l.conf >= l.cfg.ConfidenceThreshold
}

// State returns the lifecycle state.
func (l *Lock) State() State { return l.state }

// MasterID returns the identity the lock was built for. It never changes.
func (l *Lock) MasterID() string { return l.masterID }

// BoundID returns the detector id currently believed to label the subject.
// It changes only when hysteresis commits a rebind.
func (l *Lock) BoundID() string { return l.boundID }

// Confidence returns the current confidence estimate in [0,1].
func (l *Lock) Confidence() float32 { return l.conf }

// IsActive reports whether the lock is Active or Tentative.
func (l *Lock) IsActive() bool { return l.state.IsAlive() }

// Misses returns the consecutive unmatched update count.
func (l *Lock) Misses() int { return l.misses }

// Velocity returns the smoothed velocity estimate in units/s.
func (l *Lock) Velocity() (vx, vy float32) { return l.vx, l.vy }
