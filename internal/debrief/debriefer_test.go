package debrief

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openhire/openhire-agent/internal/config"
	"github.com/openhire/openhire-agent/internal/llm"
)

type mockLLMClient struct {
	calls        int
	response     string
	err          error
	lastMessages []llm.Message
}

func (m *mockLLMClient) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.calls++
	m.lastMessages = append([]llm.Message(nil), messages...)
	if m.err != nil && m.calls < 3 {
		return "", m.err
	}
	return m.response, nil
}

type claimStoreMock struct {
	claims  map[string]string
	claimed []string
	err     error
}

func (s *claimStoreMock) ClaimDebriefRequest(interviewID, promptHash string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.claims == nil {
		s.claims = make(map[string]string)
	}
	key := interviewID + "/" + promptHash
	if _, ok := s.claims[key]; ok {
		return false, nil
	}
	s.claims[key] = promptHash
	s.claimed = append(s.claimed, key)
	return true, nil
}

func singlePresetConfig() config.Debrief {
	return config.Debrief{
		Model: "openai/gpt-4o-mini",
		Presets: map[string]config.Preset{
			"default": {
				Description:  "general",
				SystemPrompt: "system",
				UserTemplate: "{{transcript}}",
			},
		},
	}
}

func TestGenerateSinglePreset(t *testing.T) {
	transcript := buildTranscript(25)
	client := &mockLLMClient{response: "## Debrief"}
	factoryCalls := 0

	d := New(singlePresetConfig(), func(provider, model string) (llm.Client, error) {
		if provider != "openai" {
			t.Fatalf("expected provider openai, got %q", provider)
		}
		if model != "gpt-4o-mini" {
			t.Fatalf("expected model gpt-4o-mini, got %q", model)
		}
		factoryCalls++
		return client, nil
	}, nil)
	d.sleep = func(time.Duration) {}

	text, preset, err := d.Generate(context.Background(), "int-1", "job", transcript, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "## Debrief" {
		t.Fatalf("expected ## Debrief, got %q", text)
	}
	if preset != "default" {
		t.Fatalf("expected preset default, got %q", preset)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 llm call, got %d", client.calls)
	}
	if factoryCalls != 1 {
		t.Fatalf("expected 1 factory call, got %d", factoryCalls)
	}
}

func TestGenerateSkipsShortTranscript(t *testing.T) {
	client := &mockLLMClient{response: "should-not-be-used"}

	d := New(singlePresetConfig(), func(_, _ string) (llm.Client, error) {
		return client, nil
	}, nil)

	text, preset, err := d.Generate(context.Background(), "int-1", "job", "too short", "")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty debrief, got %q", text)
	}
	if preset != "default" {
		t.Fatalf("expected default preset, got %q", preset)
	}
	if client.calls != 0 {
		t.Fatalf("expected zero llm calls, got %d", client.calls)
	}
}

func TestGenerateRendersTemplate(t *testing.T) {
	transcript := buildTranscript(25)
	client := &mockLLMClient{response: "ok"}

	cfg := config.Debrief{
		Model: "openai/gpt-4o-mini",
		Presets: map[string]config.Preset{
			"default": {
				Description:  "general",
				SystemPrompt: "system",
				UserTemplate: "Date={{date}}\nScores={{assessment}}\nBody={{transcript}}",
			},
		},
	}

	d := New(cfg, func(_, _ string) (llm.Client, error) {
		return client, nil
	}, nil)

	_, err := d.GenerateWithPreset(context.Background(), "int-1", transcript, `{"overall_score":4}`, "default")
	if err != nil {
		t.Fatalf("GenerateWithPreset failed: %v", err)
	}

	if len(client.lastMessages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.lastMessages))
	}
	today := time.Now().UTC().Format("2006-01-02")
	content := client.lastMessages[1].Content
	if !strings.Contains(content, "Date="+today) {
		t.Fatalf("expected rendered date in user content, got %q", content)
	}
	if !strings.Contains(content, `Scores={"overall_score":4}`) {
		t.Fatalf("expected rendered assessment in user content, got %q", content)
	}
	if !strings.Contains(content, "Body="+transcript) {
		t.Fatalf("expected rendered transcript in user content, got %q", content)
	}
}

func TestGenerateWithPreset(t *testing.T) {
	transcript := buildTranscript(25)
	client := &mockLLMClient{response: "preset-debrief"}

	cfg := config.Debrief{
		Model: "not/a-valid/global-model",
		Presets: map[string]config.Preset{
			"default": {
				Description:  "general",
				SystemPrompt: "system",
				UserTemplate: "{{transcript}}",
				Model:        "openai/gpt-4o-mini",
			},
			"hiring_manager": {
				Description:  "for the hiring manager",
				SystemPrompt: "system",
				UserTemplate: "{{transcript}}",
				Model:        "openai/gpt-4o-mini",
			},
		},
	}

	d := New(cfg, func(_, _ string) (llm.Client, error) {
		return client, nil
	}, nil)

	text, err := d.GenerateWithPreset(context.Background(), "int-1", transcript, "", "hiring_manager")
	if err != nil {
		t.Fatalf("GenerateWithPreset failed: %v", err)
	}
	if text != "preset-debrief" {
		t.Fatalf("expected preset-debrief, got %q", text)
	}
	if client.calls != 1 {
		t.Fatalf("expected one llm call, got %d", client.calls)
	}
}

func TestGenerateRetries(t *testing.T) {
	transcript := buildTranscript(25)
	client := &mockLLMClient{response: "retry-success", err: errors.New("temporary")}
	var sleeps []time.Duration

	d := New(singlePresetConfig(), func(_, _ string) (llm.Client, error) {
		return client, nil
	}, nil)
	d.sleep = func(dur time.Duration) {
		sleeps = append(sleeps, dur)
	}

	text, err := d.GenerateWithPreset(context.Background(), "int-1", transcript, "", "default")
	if err != nil {
		t.Fatalf("GenerateWithPreset failed: %v", err)
	}
	if text != "retry-success" {
		t.Fatalf("expected retry-success, got %q", text)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 llm calls, got %d", client.calls)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 sleep calls, got %d", len(sleeps))
	}
	if sleeps[0] != time.Second || sleeps[1] != 4*time.Second {
		t.Fatalf("unexpected sleep durations: %#v", sleeps)
	}
}

func TestGenerateUnknownPreset(t *testing.T) {
	d := New(singlePresetConfig(), func(_, _ string) (llm.Client, error) {
		return &mockLLMClient{response: "ok"}, nil
	}, nil)

	_, err := d.GenerateWithPreset(context.Background(), "int-1", buildTranscript(25), "", "missing")
	if err == nil {
		t.Fatal("expected unknown preset error")
	}
	if !strings.Contains(err.Error(), "unknown preset") {
		t.Fatalf("expected unknown preset error, got %v", err)
	}
}

func TestGenerateClaimsIdempotency(t *testing.T) {
	transcript := buildTranscript(25)
	client := &mockLLMClient{response: "once"}
	store := &claimStoreMock{}

	d := New(singlePresetConfig(), func(_, _ string) (llm.Client, error) {
		return client, nil
	}, store)

	text, err := d.GenerateWithPreset(context.Background(), "int-1", transcript, "", "default")
	if err != nil {
		t.Fatalf("first GenerateWithPreset failed: %v", err)
	}
	if text != "once" {
		t.Fatalf("expected debrief text, got %q", text)
	}
	if len(store.claimed) != 1 {
		t.Fatalf("expected one claim, got %d", len(store.claimed))
	}

	// Same interview and prompt: claim is rejected, no second llm call.
	text, err = d.GenerateWithPreset(context.Background(), "int-1", transcript, "", "default")
	if err != nil {
		t.Fatalf("second GenerateWithPreset failed: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty debrief on duplicate, got %q", text)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 llm call total, got %d", client.calls)
	}

	// Different interview with the same prompt is a fresh claim.
	text, err = d.GenerateWithPreset(context.Background(), "int-2", transcript, "", "default")
	if err != nil {
		t.Fatalf("third GenerateWithPreset failed: %v", err)
	}
	if text != "once" {
		t.Fatalf("expected debrief text for new interview, got %q", text)
	}
}

func TestGenerateClaimError(t *testing.T) {
	store := &claimStoreMock{err: errors.New("db locked")}

	d := New(singlePresetConfig(), func(_, _ string) (llm.Client, error) {
		return &mockLLMClient{response: "ok"}, nil
	}, store)

	_, err := d.GenerateWithPreset(context.Background(), "int-1", buildTranscript(25), "", "default")
	if err == nil {
		t.Fatal("expected claim error")
	}
	if !strings.Contains(err.Error(), "claim debrief request") {
		t.Fatalf("expected claim error, got %v", err)
	}
}

func buildTranscript(wordCount int) string {
	words := make([]string, 0, wordCount)
	for i := 0; i < wordCount; i++ {
		words = append(words, "word")
	}
	return strings.Join(words, " ")
}
