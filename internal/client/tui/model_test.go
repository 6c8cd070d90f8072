package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/client/gateway"
	"github.com/bryanwahyu/resolve-ai/internal/client/identity"
	"github.com/bryanwahyu/resolve-ai/internal/client/session"
	"github.com/bryanwahyu/resolve-ai/internal/client/voice"
	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"

	tea "github.com/charmbracelet/bubbletea"
)

type stubGateway struct {
	res *repair.Analysis
	err error
	got gateway.AnalyzeRequest
}

func (s *stubGateway) Analyze(_ context.Context, req gateway.AnalyzeRequest) (*repair.Analysis, error) {
	s.got = req
	return s.res, s.err
}

type stubEncoder struct{ paths []string }

func (s *stubEncoder) EncodeFiles(_ context.Context, paths []string) ([]repair.MediaItem, []error) {
	s.paths = paths
	out := make([]repair.MediaItem, len(paths))
	for i := range paths {
		out[i] = repair.MediaItem{ID: paths[i], Data: "aGk=", MIMEType: "image/jpeg", Kind: repair.MediaImage}
	}
	return out, nil
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func newModel(gw gateway.Analyzer) (Model, *session.Machine) {
	prefs := identity.Preferences{Store: identity.NewMemoryStore()}
	s := session.New(context.Background(), gw, nil, prefs, voice.None, zap.NewNop())
	return New(context.Background(), s, Options{Encoder: &stubEncoder{}}), s
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func lamp() *repair.Analysis {
	return &repair.Analysis{
		ObjectName:      "Desk lamp",
		DangerLevel:     repair.DangerLow,
		ConfidenceScore: 91,
		Reasoning:       "Loose socket.",
		Steps:           []string{"Unplug the lamp", "Tighten the socket"},
		ToolsRequired:   []string{"Screwdriver"},
	}
}

func TestIdleView(t *testing.T) {
	m, _ := newModel(nil)
	view := m.View()
	assert.Contains(t, view, "Add photos")
	assert.Contains(t, view, "Novice")
}

func TestAddMediaFlow(t *testing.T) {
	m, s := newModel(nil)
	enc := m.opts.Encoder.(*stubEncoder)

	m, _ = update(t, m, runes("a"))
	assert.Equal(t, inputMedia, m.input)
	m, _ = update(t, m, runes("one.jpg"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = update(t, m, runes("two.jpg"))
	m, cmd := update(t, m, enter)
	require.NotNil(t, cmd)
	assert.Equal(t, inputNone, m.input)

	m, _ = update(t, m, cmd())
	assert.Equal(t, []string{"one.jpg", "two.jpg"}, enc.paths)
	assert.Equal(t, session.Collecting, s.State())
	assert.Contains(t, m.View(), "two.jpg")
}

func TestAnalyzeAndToggle(t *testing.T) {
	gw := &stubGateway{res: lamp()}
	m, s := newModel(gw)
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))

	m, _ = update(t, m, enter)
	s.Wait()
	require.Equal(t, session.Results, s.State())
	assert.Contains(t, m.View(), "Desk lamp")
	assert.Contains(t, m.View(), "0%")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	tr := s.Snapshot().Tracker
	assert.True(t, tr.IsDone(0))
	assert.Contains(t, m.View(), "50%")

	m, _ = update(t, m, runes("n"))
	assert.Equal(t, 100, tr.Progress())

	m, _ = update(t, m, runes("r"))
	assert.Equal(t, session.Idle, s.State())
}

func TestHighDangerView(t *testing.T) {
	a := lamp()
	a.DangerLevel = repair.DangerHigh
	a.SafetyWarning = "Exposed live wiring."
	a.ProfessionalReferral = "a licensed electrician"
	m, s := newModel(&stubGateway{res: a})
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))

	m, _ = update(t, m, enter)
	s.Wait()
	view := m.View()
	assert.Contains(t, view, "STOP: DO NOT ATTEMPT")
	assert.Contains(t, view, "a licensed electrician")
	assert.NotContains(t, view, "Tighten the socket")
}

func TestErrorViewAndReset(t *testing.T) {
	m, s := newModel(&stubGateway{err: ai.ErrNotConfigured})
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))

	m, _ = update(t, m, enter)
	s.Wait()
	assert.Contains(t, m.View(), "AI service not configured")

	m, _ = update(t, m, runes("r"))
	assert.Equal(t, session.Idle, s.State())
}

func TestEditQuery(t *testing.T) {
	gw := &stubGateway{res: lamp()}
	m, s := newModel(gw)
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))

	m, _ = update(t, m, runes("e"))
	require.Equal(t, inputQuery, m.input)
	assert.Equal(t, "How do I fix this?", m.buffer)
	for range len("How do I fix this?") {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m, _ = update(t, m, runes("Why flicker?"))
	m, _ = update(t, m, enter)
	assert.Equal(t, "Why flicker?", s.Snapshot().Query)

	m, _ = update(t, m, enter)
	s.Wait()
	assert.Equal(t, "Why flicker?", gw.got.Query)
}

func TestSkillCycle(t *testing.T) {
	m, s := newModel(nil)
	m, _ = update(t, m, runes("s"))
	assert.Equal(t, repair.SkillIntermediate, s.Snapshot().Skill)
	_, _ = update(t, m, runes("s"))
	assert.Equal(t, repair.SkillExpert, s.Snapshot().Skill)
	assert.Equal(t, repair.SkillNovice, nextSkill(repair.SkillExpert))
}

func TestVoiceUnavailableNotice(t *testing.T) {
	m, s := newModel(&stubGateway{res: lamp()})
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))
	m, _ = update(t, m, enter)
	s.Wait()

	m, _ = update(t, m, runes("v"))
	assert.True(t, m.noticeError)
	assert.Contains(t, m.View(), "Voice is not available")
}

func TestAPIKeyInputIsMasked(t *testing.T) {
	var saved string
	m, _ := newModel(nil)
	m.opts.OnAPIKey = func(_ context.Context, key string) error {
		saved = key
		return nil
	}
	m, _ = update(t, m, runes("K"))
	m, _ = update(t, m, runes("secret"))
	assert.Contains(t, m.View(), "******")
	assert.NotContains(t, m.View(), "secret")

	m, cmd := update(t, m, enter)
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, "secret", saved)
	assert.Contains(t, m.View(), "API key saved")
}

func TestLowConfidenceAdvisory(t *testing.T) {
	low := lamp()
	low.ConfidenceScore = 40
	m, s := newModel(&stubGateway{res: low})
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))
	m, _ = update(t, m, enter)
	s.Wait()
	assert.Contains(t, m.View(), "Low confidence")

	danger := lamp()
	danger.ConfidenceScore = 40
	danger.DangerLevel = repair.DangerHigh
	danger.SafetyWarning = "Exposed live wiring."
	m, s = newModel(&stubGateway{res: danger})
	require.NoError(t, s.AddMedia(repair.MediaItem{ID: "0", Data: "aGk=", MIMEType: "image/png", Kind: repair.MediaImage}))
	m, _ = update(t, m, enter)
	s.Wait()
	assert.NotContains(t, m.View(), "Low confidence")
}
