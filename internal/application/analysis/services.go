package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/prompt"
)

// Service runs one structured analysis per call. No retry.
type Service struct {
	Analyzer ai.Analyzer
	Logger   *zap.Logger
}

func NewService(analyzer ai.Analyzer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.L()
	}
	return &Service{Analyzer: analyzer, Logger: logger}
}

// AnalyzeCommand is the gateway request. Preview locators and ids are not needed here.
type AnalyzeCommand struct {
	Media      []repair.MediaItem
	Query      string
	SkillLevel repair.SkillLevel
}

func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*repair.Analysis, error) {
	if len(cmd.Media) == 0 {
		return nil, ai.ErrEmptyMedia
	}
	if s == nil || s.Analyzer == nil {
		return nil, ai.ErrNotConfigured
	}
	if cmd.SkillLevel == "" {
		cmd.SkillLevel = repair.DefaultSkillLevel
	}

	req, err := prompt.Build(cmd.Media, cmd.Query, cmd.SkillLevel)
	if err != nil {
		return nil, err
	}

	raw, err := s.Analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := Decode(raw)
	if err != nil {
		s.Logger.Warn("analysis response rejected", zap.Error(err), zap.Int("bytes", len(raw)))
		return nil, err
	}

	anomalies, err := repair.Normalize(result)
	if err != nil {
		return nil, eris.Wrap(ai.ErrMalformedResponse, err.Error())
	}
	for _, a := range anomalies {
		s.Logger.Warn("analysis anomaly",
			zap.String("anomaly", string(a)),
			zap.String("object", result.ObjectName),
			zap.String("danger", string(result.DangerLevel)),
		)
	}
	s.Logger.Info("analysis completed",
		zap.Int("media", len(cmd.Media)),
		zap.String("skill", string(cmd.SkillLevel)),
		zap.String("danger", string(result.DangerLevel)),
		zap.Int("confidence", result.ConfidenceScore),
	)
	return result, nil
}

// Decode parses the model body. Empty or non-object text is malformed.
func Decode(raw string) (*repair.Analysis, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ai.ErrMalformedResponse
	}
	var out repair.Analysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(ai.ErrMalformedResponse, err.Error())
	}
	return &out, nil
}
