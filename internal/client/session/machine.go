// Package session drives screen state for one user: collecting media,
// analyzing, showing results or errors, and browsing history.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/application/archive"
	"github.com/bryanwahyu/resolve-ai/internal/client/gateway"
	"github.com/bryanwahyu/resolve-ai/internal/client/tracker"
	"github.com/bryanwahyu/resolve-ai/internal/client/voice"
	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	"github.com/bryanwahyu/resolve-ai/internal/domain/scans"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/prompt"
)

type State int

const (
	Idle State = iota
	Collecting
	Analyzing
	Results
	Error
	History
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Analyzing:
		return "analyzing"
	case Results:
		return "results"
	case Error:
		return "error"
	case History:
		return "history"
	}
	return "unknown"
}

var (
	ErrBusy         = eris.New("analysis in progress")
	ErrInvalidState = eris.New("action not allowed in current state")
	ErrNotFound     = eris.New("history entry not found")
)

// Archive is the best-effort scan history.
type Archive interface {
	NewScan(cmd archive.SaveCommand) *scans.StoredScan
	Save(ctx context.Context, scan *scans.StoredScan) bool
	List(ctx context.Context) []*scans.StoredScan
	Delete(ctx context.Context, id scans.ScanID)
}

// SkillPrefs persists the skill level on this device.
type SkillPrefs interface {
	SkillLevel(ctx context.Context) repair.SkillLevel
	SetSkillLevel(ctx context.Context, lvl repair.SkillLevel) error
}

// Snapshot is a copy of the session for renderers.
type Snapshot struct {
	State         State
	Media         []repair.MediaItem
	Query         string
	Skill         repair.SkillLevel
	Result        *repair.Analysis
	LowConfidence bool
	ErrorMessage  string
	History       []*scans.StoredScan
	Tracker       *tracker.Tracker
}

// Machine is safe for concurrent use. OnChange is called without the lock
// held whenever state changes, including from background completions.
type Machine struct {
	Gateway  gateway.Analyzer
	Archive  Archive
	Prefs    SkillPrefs
	Voice    voice.Capabilities
	Logger   *zap.Logger
	OnChange func()

	mu      sync.Mutex
	wg      sync.WaitGroup
	state   State
	media   []repair.MediaItem
	query   string
	skill   repair.SkillLevel
	result  *repair.Analysis
	errMsg  string
	history []*scans.StoredScan
	track   *tracker.Tracker
	cancel  context.CancelFunc
	seq     int
}

func New(ctx context.Context, gw gateway.Analyzer, arc Archive, prefs SkillPrefs, caps voice.Capabilities, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.L()
	}
	if caps == nil {
		caps = voice.None
	}
	skill := repair.DefaultSkillLevel
	if prefs != nil {
		skill = prefs.SkillLevel(ctx)
	}
	return &Machine{
		Gateway: gw,
		Archive: arc,
		Prefs:   prefs,
		Voice:   caps,
		Logger:  logger,
		state:   Idle,
		query:   prompt.DefaultQuery,
		skill:   skill,
	}
}

// SetGateway swaps the analyzer used by later analyses.
func (m *Machine) SetGateway(gw gateway.Analyzer) {
	m.mu.Lock()
	m.Gateway = gw
	m.mu.Unlock()
}

func (m *Machine) notify() {
	if f := m.OnChange; f != nil {
		f()
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:        m.state,
		Media:        append([]repair.MediaItem(nil), m.media...),
		Query:        m.query,
		Skill:        m.skill,
		ErrorMessage: m.errMsg,
		History:      append([]*scans.StoredScan(nil), m.history...),
		Tracker:      m.track,
	}
	if m.result != nil {
		r := *m.result
		s.Result = &r
		s.LowConfidence = r.LowConfidence()
	}
	return s
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AddMedia appends encoded items. The first item moves Idle to Collecting.
func (m *Machine) AddMedia(items ...repair.MediaItem) error {
	m.mu.Lock()
	if m.state == Analyzing {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.state != Idle && m.state != Collecting {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "add media in %s", m.state)
	}
	m.media = append(m.media, items...)
	if len(m.media) > 0 {
		m.state = Collecting
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// RemoveMedia drops one item; removing the last returns to Idle.
func (m *Machine) RemoveMedia(id string) error {
	m.mu.Lock()
	if m.state == Analyzing {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.state != Collecting {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "remove media in %s", m.state)
	}
	kept := m.media[:0:0]
	for _, it := range m.media {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	m.media = kept
	if len(m.media) == 0 {
		m.state = Idle
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Machine) SetQuery(q string) error {
	m.mu.Lock()
	if m.state == Analyzing {
		m.mu.Unlock()
		return ErrBusy
	}
	m.query = q
	m.mu.Unlock()
	m.notify()
	return nil
}

// SetSkill changes and persists the skill level. A failed write is logged.
func (m *Machine) SetSkill(ctx context.Context, lvl repair.SkillLevel) error {
	m.mu.Lock()
	if m.state == Analyzing {
		m.mu.Unlock()
		return ErrBusy
	}
	m.skill = lvl
	m.mu.Unlock()
	if m.Prefs != nil {
		if err := m.Prefs.SetSkillLevel(ctx, lvl); err != nil {
			m.Logger.Warn("persist skill level", zap.Error(err))
		}
	}
	m.notify()
	return nil
}

// Analyze moves Collecting to Analyzing and submits in the background. The
// outcome lands in Results or Error; Wait blocks until it has.
func (m *Machine) Analyze(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Analyzing {
		m.mu.Unlock()
		return ErrBusy
	}
	if len(m.media) == 0 {
		m.mu.Unlock()
		return ai.ErrEmptyMedia
	}
	if m.state != Collecting {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "analyze in %s", m.state)
	}
	ctx, cancel := context.WithCancel(ctx)
	m.seq++
	seq := m.seq
	m.cancel = cancel
	m.state = Analyzing
	m.errMsg = ""
	query := strings.TrimSpace(m.query)
	if query == "" {
		query = prompt.DefaultQuery
	}
	req := gateway.AnalyzeRequest{
		Media: append([]repair.MediaItem(nil), m.media...),
		Query: query,
		Skill: m.skill,
	}
	gw := m.Gateway
	m.mu.Unlock()
	m.notify()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		var (
			res *repair.Analysis
			err error
		)
		if gw == nil {
			err = ai.ErrNotConfigured
		} else {
			res, err = gw.Analyze(ctx, req)
		}
		m.complete(ctx, seq, req, res, err)
	}()
	return nil
}

func (m *Machine) complete(ctx context.Context, seq int, req gateway.AnalyzeRequest, res *repair.Analysis, err error) {
	m.mu.Lock()
	if seq != m.seq || m.state != Analyzing {
		// cancelled, outcome no longer wanted
		m.mu.Unlock()
		return
	}
	m.cancel = nil
	if err == nil && res == nil {
		err = eris.Wrap(ai.ErrMalformedResponse, "empty analysis")
	}
	if err != nil {
		m.state = Error
		m.errMsg = gateway.Message(err)
		m.mu.Unlock()
		m.Logger.Warn("analysis failed", zap.Error(err))
		m.notify()
		return
	}
	m.state = Results
	m.result = res
	old := m.loadTrackerLocked(*res, nil)
	m.mu.Unlock()
	closeTracker(old)
	m.notify()

	if m.Archive == nil {
		return
	}
	scan := m.Archive.NewScan(archive.SaveCommand{
		Analysis:   *res,
		Media:      req.Media,
		Query:      req.Query,
		SkillLevel: req.Skill,
	})
	// context may already be cancelled by a reset; the save still goes through
	m.Archive.Save(context.WithoutCancel(ctx), scan)
}

// loadTrackerLocked installs a fresh tracker and returns the previous one,
// which the caller closes after releasing the lock.
func (m *Machine) loadTrackerLocked(a repair.Analysis, completed []int) *tracker.Tracker {
	old := m.track
	t := tracker.New(a, completed, m.Voice, m.Logger)
	t.OnChange = m.notify
	m.track = t
	return old
}

func closeTracker(t *tracker.Tracker) {
	if t != nil {
		t.Close()
	}
}

// Cancel aborts the in-flight analysis and returns to Collecting with media kept.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if m.state != Analyzing {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "cancel in %s", m.state)
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.seq++
	m.state = Collecting
	m.mu.Unlock()
	m.notify()
	return nil
}

// Reset clears media, result, error and query and returns to Idle.
func (m *Machine) Reset() error {
	m.mu.Lock()
	switch m.state {
	case Analyzing:
		m.mu.Unlock()
		return ErrBusy
	case History:
		m.mu.Unlock()
		return eris.Wrap(ErrInvalidState, "reset in history")
	}
	old := m.clearLocked()
	m.state = Idle
	m.mu.Unlock()
	closeTracker(old)
	m.notify()
	return nil
}

func (m *Machine) clearLocked() *tracker.Tracker {
	old := m.track
	m.media = nil
	m.result = nil
	m.errMsg = ""
	m.query = prompt.DefaultQuery
	m.track = nil
	return old
}

// OpenHistory loads the device's scans. Only reachable from Idle.
func (m *Machine) OpenHistory(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Analyzing {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.state != Idle {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "open history in %s", m.state)
	}
	m.state = History
	m.history = nil
	m.mu.Unlock()
	m.notify()

	var list []*scans.StoredScan
	if m.Archive != nil {
		list = m.Archive.List(ctx)
	}
	m.mu.Lock()
	if m.state == History {
		m.history = list
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Machine) CloseHistory() error {
	m.mu.Lock()
	if m.state != History {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "close history in %s", m.state)
	}
	m.state = Idle
	m.history = nil
	m.mu.Unlock()
	m.notify()
	return nil
}

// SelectHistory replays a stored scan into Results. Previews come from the
// stored payload, not the network.
func (m *Machine) SelectHistory(id scans.ScanID) error {
	m.mu.Lock()
	if m.state != History {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "select history in %s", m.state)
	}
	var found *scans.StoredScan
	for _, s := range m.history {
		if s.ID == id {
			found = s
			break
		}
	}
	if found == nil {
		m.mu.Unlock()
		return eris.Wrapf(ErrNotFound, "scan %s", id)
	}
	media := make([]repair.MediaItem, len(found.Media))
	for i, it := range found.Media {
		if it.Data != "" {
			it.PreviewURL = it.DataURL()
		}
		media[i] = it
	}
	res := found.Analysis
	m.media = media
	m.result = &res
	m.errMsg = ""
	m.query = found.Query
	if m.query == "" {
		m.query = prompt.DefaultQuery
	}
	old := m.loadTrackerLocked(res, found.CompletedSteps)
	m.state = Results
	m.mu.Unlock()
	closeTracker(old)
	m.notify()
	return nil
}

// DeleteHistory removes an entry from the archive and the loaded list.
func (m *Machine) DeleteHistory(ctx context.Context, id scans.ScanID) error {
	m.mu.Lock()
	if m.state != History {
		m.mu.Unlock()
		return eris.Wrapf(ErrInvalidState, "delete history in %s", m.state)
	}
	m.mu.Unlock()

	if m.Archive != nil {
		m.Archive.Delete(ctx, id)
	}
	m.mu.Lock()
	kept := m.history[:0:0]
	for _, s := range m.history {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	m.history = kept
	m.mu.Unlock()
	m.notify()
	return nil
}

// Wait blocks until background analyses have finished.
func (m *Machine) Wait() { m.wg.Wait() }

// Close cancels any analysis and tears down the tracker.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.seq++
	old := m.track
	m.track = nil
	m.mu.Unlock()
	closeTracker(old)
	m.wg.Wait()
}
