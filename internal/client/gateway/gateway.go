// Package gateway submits analysis requests to the server boundary.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	appanalysis "github.com/bryanwahyu/resolve-ai/internal/application/analysis"
	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// AnalyzeRequest is what the session sends for one analysis.
type AnalyzeRequest struct {
	Media []repair.MediaItem
	Query string
	Skill repair.SkillLevel
}

// Analyzer returns a parsed analysis or a typed failure. One attempt, no retry.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*repair.Analysis, error)
}

// RemoteError is a non-2xx answer from the server.
type RemoteError struct {
	Status  int
	Message string
	kind    error
}

func (e *RemoteError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return ai.GenericFailureMessage
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.kind }

// Client talks to POST /api/analyze.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 3 * time.Minute},
	}
}

type wireMedia struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireRequest struct {
	MediaItems []wireMedia `json:"mediaItems"`
	UserPrompt string      `json:"userPrompt"`
	SkillLevel string      `json:"skillLevel"`
}

func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*repair.Analysis, error) {
	if len(req.Media) == 0 {
		return nil, ai.ErrEmptyMedia
	}

	body := wireRequest{
		MediaItems: make([]wireMedia, len(req.Media)),
		UserPrompt: req.Query,
		SkillLevel: string(req.Skill),
	}
	for i, m := range req.Media {
		body.MediaItems[i] = wireMedia{MIMEType: m.MIMEType, Data: m.Data}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "encode analyze request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/analyze", bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "build analyze request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &RemoteError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &RemoteError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(resp.StatusCode, payload)
	}

	result, err := appanalysis.Decode(string(payload))
	if err != nil {
		return nil, err
	}
	if _, err := repair.Normalize(result); err != nil {
		return nil, eris.Wrap(ai.ErrMalformedResponse, err.Error())
	}
	return result, nil
}

func remoteError(status int, payload []byte) *RemoteError {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(payload, &body)
	e := &RemoteError{Status: status, Message: body.Error}
	switch status {
	case http.StatusServiceUnavailable:
		e.kind = ai.ErrNotConfigured
		if e.Message == "" {
			e.Message = ai.ErrNotConfigured.Error()
		}
	case http.StatusTooManyRequests:
		e.kind = ai.ErrQuotaExceeded
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(body.Error), "no media") {
			e.kind = ai.ErrEmptyMedia
		}
	}
	return e
}

// Message renders any gateway failure as user-facing text, never blank.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Error()
	}
	switch {
	case errors.Is(err, ai.ErrEmptyMedia):
		return "Please add at least one photo or video."
	case errors.Is(err, ai.ErrNotConfigured):
		return ai.ErrNotConfigured.Error()
	case errors.Is(err, ai.ErrMalformedResponse):
		return ai.GenericFailureMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return ai.GenericFailureMessage
}

// Local runs the analysis in-process, e.g. with a key kept on this device.
type Local struct {
	Service *appanalysis.Service
}

func (l Local) Analyze(ctx context.Context, req AnalyzeRequest) (*repair.Analysis, error) {
	if len(req.Media) == 0 {
		return nil, ai.ErrEmptyMedia
	}
	if l.Service == nil {
		return nil, ai.ErrNotConfigured
	}
	return l.Service.Analyze(ctx, appanalysis.AnalyzeCommand{
		Media:      req.Media,
		Query:      req.Query,
		SkillLevel: req.Skill,
	})
}
