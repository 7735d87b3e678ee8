package debrief

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/openhire/openhire-agent/internal/config"
	"github.com/openhire/openhire-agent/internal/llm"
)

type ClientFactory func(provider, model string) (llm.Client, error)

// IdempotencyStore prevents duplicate debrief generation for the same
// interview and prompt. Claiming returns false when an identical
// request was already recorded.
type IdempotencyStore interface {
	ClaimDebriefRequest(interviewID, promptHash string) (bool, error)
}

// Debriefer turns a finished interview transcript into a written
// debrief for the hiring team, using the preset that best matches the
// role being hired for.
type Debriefer struct {
	cfg     config.Debrief
	factory ClientFactory
	store   IdempotencyStore
	router  *Router
	sleep   func(time.Duration)
}

func New(cfg config.Debrief, factory ClientFactory, store IdempotencyStore) *Debriefer {
	var router *Router
	if len(cfg.Presets) > 1 {
		router = NewRouter(cfg, factory)
	}
	return &Debriefer{
		cfg:     cfg,
		factory: factory,
		store:   store,
		router:  router,
		sleep:   time.Sleep,
	}
}

// Generate produces a debrief for the interview, selecting a preset
// from the job description and transcript. It returns the debrief
// text and the preset used. An empty debrief with a nil error means
// the request was skipped (short transcript or duplicate).
func (d *Debriefer) Generate(ctx context.Context, interviewID, jobDescription, transcript, assessment string) (string, string, error) {
	presetName, err := d.selectPreset(ctx, jobDescription, transcript)
	if err != nil {
		return "", "", fmt.Errorf("select preset: %w", err)
	}
	text, err := d.GenerateWithPreset(ctx, interviewID, transcript, assessment, presetName)
	return text, presetName, err
}

func (d *Debriefer) GenerateWithPreset(ctx context.Context, interviewID, transcript, assessment, presetName string) (string, error) {
	if len(strings.Fields(transcript)) < 20 {
		return "", nil
	}

	preset, ok := d.cfg.Presets[presetName]
	if !ok {
		return "", fmt.Errorf("unknown preset %q", presetName)
	}

	modelStr := preset.Model
	if modelStr == "" {
		modelStr = d.cfg.Model
	}

	provider, model, err := llm.ParseModel(modelStr)
	if err != nil {
		return "", err
	}

	client, err := d.factory(provider, model)
	if err != nil {
		return "", fmt.Errorf("create llm client: %w", err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	userContent := strings.ReplaceAll(preset.UserTemplate, "{{transcript}}", transcript)
	userContent = strings.ReplaceAll(userContent, "{{assessment}}", assessment)
	userContent = strings.ReplaceAll(userContent, "{{date}}", date)

	if d.store != nil {
		hash := sha256.Sum256([]byte(preset.SystemPrompt + "\x00" + userContent))
		claimed, err := d.store.ClaimDebriefRequest(interviewID, hex.EncodeToString(hash[:]))
		if err != nil {
			return "", fmt.Errorf("claim debrief request: %w", err)
		}
		if !claimed {
			return "", nil
		}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: preset.SystemPrompt},
		{Role: llm.RoleUser, Content: userContent},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		result, err := client.Complete(ctx, messages)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < len(backoff)-1 {
			d.sleep(backoff[attempt])
		}
	}
	return "", fmt.Errorf("debrief failed after retries: %w", lastErr)
}

func (d *Debriefer) selectPreset(ctx context.Context, jobDescription, transcript string) (string, error) {
	if d.router == nil {
		for name := range d.cfg.Presets {
			return name, nil
		}
		return "default", nil
	}
	return d.router.SelectPreset(ctx, jobDescription, transcript)
}

func (d *Debriefer) Presets() map[string]config.Preset {
	return d.cfg.Presets
}
