package debrief

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/openhire/openhire-agent/internal/config"
	"github.com/openhire/openhire-agent/internal/llm"
)

// Router picks the debrief preset that best fits the role, using a
// cheap LLM call over the job description and a transcript sample.
type Router struct {
	cfg     config.Debrief
	factory ClientFactory
}

func NewRouter(cfg config.Debrief, factory ClientFactory) *Router {
	return &Router{cfg: cfg, factory: factory}
}

// SampleTranscript keeps the first, middle, and last words of a long
// transcript so the routing prompt stays small.
func SampleTranscript(transcript string, firstN, midN, lastN int) string {
	words := strings.Fields(transcript)
	total := len(words)

	if total <= firstN+midN+lastN {
		return transcript
	}

	first := strings.Join(words[:firstN], " ")
	midStart := (total - midN) / 2
	mid := strings.Join(words[midStart:midStart+midN], " ")
	last := strings.Join(words[total-lastN:], " ")

	return first + "\n\n[...]\n\n" + mid + "\n\n[...]\n\n" + last
}

func (r *Router) SelectPreset(ctx context.Context, jobDescription, transcript string) (string, error) {
	sampled := SampleTranscript(transcript, 300, 200, 200)

	var presetList strings.Builder
	for name, preset := range r.cfg.Presets {
		fmt.Fprintf(&presetList, "- %s: %s\n", name, preset.Description)
	}

	prompt := fmt.Sprintf(`Given this job description and interview excerpt, choose the single best debrief preset.

Job description:
%s

Interview excerpt:
%s

Available presets:
%s
Reply with ONLY the preset name, nothing else.`, jobDescription, sampled, presetList.String())

	provider, model, err := llm.ParseModel(r.cfg.Model)
	if err != nil {
		log.Printf("debrief router: parse model failed, using default preset: %v", err)
		return r.fallbackPreset(), nil
	}

	client, err := r.factory(provider, model)
	if err != nil {
		log.Printf("debrief router: create client failed, using default preset: %v", err)
		return r.fallbackPreset(), nil
	}

	result, err := client.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		log.Printf("debrief router: llm call failed, using default preset: %v", err)
		return r.fallbackPreset(), nil
	}

	chosen := strings.TrimSpace(result)
	if _, ok := r.cfg.Presets[chosen]; ok {
		return chosen, nil
	}

	log.Printf("debrief router: unknown preset %q, using default", chosen)
	return r.fallbackPreset(), nil
}

func (r *Router) fallbackPreset() string {
	if _, ok := r.cfg.Presets["default"]; ok {
		return "default"
	}
	keys := make([]string, 0, len(r.cfg.Presets))
	for k := range r.cfg.Presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
