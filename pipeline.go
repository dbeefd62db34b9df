package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

type Tailorer interface {
	Tailor(ctx context.Context, resumeText, jobText string) (*TailoredResume, error)
}

const tailorUserID = "resumetailor"

// agentTailor runs an ADK agent tree once per job, each call in its own
// session.
type agentTailor struct {
	appName    string
	runner     *runner.Runner
	sessions   session.Service
	finalAgent string
	attempts   int
	logger     *zap.Logger
}

func newAgentTailor(root agent.Agent, finalAgent string, attempts int, logger *zap.Logger) (*agentTailor, error) {
	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        root.Name(),
		Agent:          root,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}
	return &agentTailor{
		appName:    root.Name(),
		runner:     r,
		sessions:   sessions,
		finalAgent: finalAgent,
		attempts:   attempts,
		logger:     logger,
	}, nil
}

func (t *agentTailor) Tailor(ctx context.Context, resumeText, jobText string) (*TailoredResume, error) {
	attempt := 0
	return retry(ctx, t.attempts, func() (*TailoredResume, error) {
		attempt++
		result, err := t.tailorOnce(ctx, resumeText, jobText)
		if err != nil {
			t.logger.Warn("tailoring attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return result, err
	})
}

func (t *agentTailor) tailorOnce(ctx context.Context, resumeText, jobText string) (*TailoredResume, error) {
	created, err := t.sessions.Create(ctx, &session.CreateRequest{
		AppName:   t.appName,
		UserID:    tailorUserID,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess := created.Session
	defer func() {
		err := t.sessions.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   sess.AppName(),
			UserID:    sess.UserID(),
			SessionID: sess.ID(),
		})
		if err != nil {
			t.logger.Warn("failed to delete agent session", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}()

	stream := t.runner.Run(ctx, sess.UserID(), sess.ID(), &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: tailorMessage(resumeText, jobText)},
		},
	}, agent.RunConfig{})

	outputs := map[string]string{}
	for event, err := range stream {
		if err != nil {
			return nil, fmt.Errorf("agent stream error: %w", err)
		}
		if event == nil || event.Content == nil || !event.IsFinalResponse() {
			continue
		}
		if text := partsText(event.Content.Parts); text != "" {
			outputs[event.Author] = text
			t.logger.Debug("agent finished", zap.String("agent", event.Author), zap.Int("chars", len(text)))
		}
	}

	result, err := parseTailoredResume(outputs[t.finalAgent])
	if err != nil {
		return nil, err
	}
	result.Review = outputs[resumeReviewerAgent]
	return result, nil
}

func tailorMessage(resumeText, jobText string) string {
	return fmt.Sprintf("Resume:\n%s\n\nJob Posting:\n%s", resumeText, jobText)
}

// jobText is what the agents see of a job record.
func jobText(title, description string) string {
	return strings.TrimSpace(title) + "\n" + strings.TrimSpace(description)
}

func partsText(parts []*genai.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// parseTailoredResume decodes the final agent output. Scores are clamped
// to 0..100.
func parseTailoredResume(raw string) (*TailoredResume, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty response from agent")
	}
	var result TailoredResume
	if err := json.Unmarshal([]byte(CleanJson(raw)), &result); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	if strings.TrimSpace(result.TailoredResume) == "" {
		return nil, errors.New("agent returned no tailored resume")
	}
	result.Before = clampScore(result.Before)
	result.After = clampScore(result.After)
	result.Changes = strings.TrimSpace(result.Changes)
	result.TailoredResume = strings.TrimSpace(result.TailoredResume)
	return &result, nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
