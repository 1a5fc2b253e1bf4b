package training

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/myrjola/traincore/internal/errors"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/yuin/goldmark"
)

const coachingMaxTokens = 300

// Coach writes markdown coaching text for one block of a workout.
type Coach interface {
	Coach(ctx context.Context, workout GeneratedWorkout, block Block) (string, error)
}

// TemplateCoach writes deterministic coaching text from the block contents.
type TemplateCoach struct{}

// Coach implements Coach.
func (TemplateCoach) Coach(_ context.Context, workout GeneratedWorkout, block Block) (string, error) {
	return templateCoaching(block, TierFor(workout.Readiness)), nil
}

// OpenAICoach asks a chat model for coaching text.
type OpenAICoach struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAICoach creates a coach backed by the OpenAI chat completions API.
func NewOpenAICoach(apiKey string) *OpenAICoach {
	return &OpenAICoach{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}
}

// Coach implements Coach.
func (c *OpenAICoach) Coach(ctx context.Context, workout GeneratedWorkout, block Block) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Readiness today: %d/100. Workout shape: %s.", workout.Readiness, workout.Archetype)
	if workout.Phase != "" {
		fmt.Fprintf(&sb, " Training phase: %s.", workout.Phase)
	}
	fmt.Fprintf(&sb, "\nWrite coaching notes for the %s block:\n", block.Type)
	for _, e := range block.Exercises {
		fmt.Fprintf(&sb, "- %s: %d x %d", e.Name, e.Sets, e.Reps)
		if e.Weight > 0 {
			fmt.Fprintf(&sb, " at %g kg", e.Weight)
		}
		fmt.Fprintf(&sb, ", rest %ds, target RPE %g\n", e.RestSeconds, e.TargetRPE)
	}

	chat, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{ //nolint:exhaustruct // only need a few fields.
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a concise strength coach. Answer in markdown with at most three short " +
				"bullet points focusing on execution cues and safety. Do not change the prescribed numbers."),
			openai.UserMessage(sb.String()),
		},
		Model:               c.model,
		MaxCompletionTokens: openai.Int(coachingMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(chat.Choices) == 0 || strings.TrimSpace(chat.Choices[0].Message.Content) == "" {
		return "", errors.New("chat completion returned no coaching text")
	}
	return chat.Choices[0].Message.Content, nil
}

// CoachingHTML renders the coaching markdown to HTML.
func (b Block) CoachingHTML() (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(b.CoachingText), &buf); err != nil {
		return "", fmt.Errorf("convert coaching markdown: %w", err)
	}
	return buf.String(), nil
}

// templateCoaching writes markdown coaching text for a block.
func templateCoaching(block Block, tier ReadinessTier) string {
	var sb strings.Builder
	switch block.Type {
	case BlockWarmup:
		sb.WriteString("**Warm-up.** Move through each drill with control and gradually increase range of motion.\n")
	case BlockStrength:
		sb.WriteString("**Strength.** Own every rep; stop a set early if technique slips.\n")
	case BlockMetabolic:
		sb.WriteString("**Conditioning.** Keep transitions short and breathe steadily.\n")
	case BlockCooldown:
		sb.WriteString("**Cool-down.** Slow the breathing down and hold each position without bouncing.\n")
	case BlockMobility:
		sb.WriteString("**Mobility.** Ease into end ranges and keep the movement pain free.\n")
	}

	switch tier {
	case TierHigh:
		sb.WriteString("\nYou are well recovered today; push the working sets.\n")
	case TierRecovery, TierLowModerate:
		sb.WriteString("\nReadiness is low today; leave two reps in reserve on every set.\n")
	case TierModerateHigh, TierModerate:
	}

	for _, e := range block.Exercises {
		if e.LoadNote != "" {
			fmt.Fprintf(&sb, "\n- %s: %s", e.Name, e.LoadNote)
		}
		if e.Decision != nil && e.Decision.Type != DecisionMaintain {
			fmt.Fprintf(&sb, "\n- %s: %s", e.Name, e.Decision.Reason)
		}
	}
	return sb.String()
}
