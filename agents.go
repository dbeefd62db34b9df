package main

import (
	"context"
	"fmt"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/agent/workflowagents/sequentialagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

const (
	TailorModeCrew   = "crew"
	TailorModeSingle = "single"
)

// agent names, also the event authors the pipeline reads results from
const (
	skillsTailorAgent     = "skills_tailor"
	experienceTailorAgent = "experience_tailor"
	resumeManagerAgent    = "resume_manager"
	resumeReviewerAgent   = "resume_reviewer"
	finalResumeAgent      = "final_resume_generator"
	singleResumeAgent     = "resume_generator"
	crewAgent             = "resume_tailoring_crew"
)

func NewGeminiModel(ctx context.Context, apiKey, modelName string) (model.LLM, error) {
	m, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return m, nil
}

// tailoredResumeSchema mirrors TailoredResume without the review field.
func tailoredResumeSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"Before":         {Type: genai.TypeNumber, Description: "ATS score of the original resume, 0 to 100"},
			"After":          {Type: genai.TypeNumber, Description: "ATS score of the tailored resume, 0 to 100"},
			"Changes":        {Type: genai.TypeString, Description: "comma separated list of changes"},
			"TailoredResume": {Type: genai.TypeString, Description: "tailored resume in Markdown"},
		},
		Required:         []string{"Before", "After", "Changes", "TailoredResume"},
		PropertyOrdering: []string{"Before", "After", "Changes", "TailoredResume"},
	}
}

func generationConfig(temperature float64) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
}

// GetAgent builds the tailoring agent for mode and returns it together with
// the name of the agent whose final response carries the JSON result.
func GetAgent(m model.LLM, mode string, temperature float64) (agent.Agent, string, error) {
	switch mode {
	case TailorModeSingle:
		a, err := llmagent.New(llmagent.Config{
			Name:                  singleResumeAgent,
			Model:                 m,
			Description:           "Tailors a resume to a job posting in one pass",
			Instruction:           singleTailorInstruction,
			GenerateContentConfig: generationConfig(temperature),
			OutputSchema:          tailoredResumeSchema(),
			OutputKey:             "tailored_json",
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create agent: %w", err)
		}
		return a, singleResumeAgent, nil
	case TailorModeCrew:
		crew, err := newCrew(m, temperature)
		if err != nil {
			return nil, "", err
		}
		return crew, finalResumeAgent, nil
	default:
		return nil, "", fmt.Errorf("unknown tailor mode %q", mode)
	}
}

func newCrew(m model.LLM, temperature float64) (agent.Agent, error) {
	steps := []llmagent.Config{
		{
			Name:        skillsTailorAgent,
			Description: "Tailors the summary and skills sections",
			Instruction: skillsTailorInstruction,
			OutputKey:   "skills_section",
		},
		{
			Name:        experienceTailorAgent,
			Description: "Tailors the professional experience entries",
			Instruction: experienceTailorInstruction,
			OutputKey:   "experience_section",
		},
		{
			Name:        resumeManagerAgent,
			Description: "Merges tailored sections into the full resume",
			Instruction: resumeManagerInstruction,
			OutputKey:   "merged_resume",
		},
		{
			Name:        resumeReviewerAgent,
			Description: "Reviews the merged resume for ATS fit and fabrication",
			Instruction: resumeReviewerInstruction,
			OutputKey:   "review_feedback",
		},
		{
			Name:         finalResumeAgent,
			Description:  "Applies the review and emits the structured result",
			Instruction:  finalResumeInstruction,
			OutputSchema: tailoredResumeSchema(),
			OutputKey:    "tailored_json",
		},
	}

	subAgents := make([]agent.Agent, 0, len(steps))
	for _, cfg := range steps {
		cfg.Model = m
		cfg.GenerateContentConfig = generationConfig(temperature)
		a, err := llmagent.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %s: %w", cfg.Name, err)
		}
		subAgents = append(subAgents, a)
	}

	crew, err := sequentialagent.New(sequentialagent.Config{
		AgentConfig: agent.Config{
			Name:        crewAgent,
			Description: "Skills, experience, merge, review and final output in order",
			SubAgents:   subAgents,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create crew: %w", err)
	}
	return crew, nil
}
