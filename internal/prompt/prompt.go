// Package prompt holds the per-stage prompt templates, with optional
// overrides from a YAML file.
package prompt

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bookgen/internal/model"
)

// Template is a system/user prompt pair. The user text is a fmt template;
// each call site documents its verbs.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Set maps template keys to templates. Keys are the stage tags plus the
// auxiliary KeyTOCLines reprompt.
type Set map[string]Template

// KeyTOCLines is the auxiliary reprompt used by the TOC heuristic fallback:
// ask for plain numbered lines instead of JSON.
const KeyTOCLines = "toc_lines"

// RepairSystem converts malformed model output into strict JSON. Used by the
// repair pass, not tied to a stage.
const RepairSystem = "You are a JSON converter. Convert the user's content to STRICT JSON ONLY. No prose, no code fences."

// ForStage returns the template for a pipeline stage.
func (s Set) ForStage(stage model.Stage) Template {
	return s[string(stage)]
}

// Defaults returns the built-in templates.
func Defaults() Set {
	return Set{
		string(model.StageSpec): {
			System: "Turn a short problem statement into a complete book specification. " +
				"Capture title, subtitle, audience, tone, goals/outcomes, constraints.",
			User: "Problem: %s\nTotal pages: %d\nWords per page: %d\n" +
				"Return ONLY a JSON object. Avoid explanations.",
		},
		string(model.StageTOC): {
			System: "Design a Table of Contents for a practical, non-repetitive book.\n" +
				"Return ONLY JSON: an array of objects with fields: number (int), title (string), target_pages (int).\n" +
				"No prose, no markdown, no explanations.",
			User: "Book spec: %s\nTotal pages: %d\n" +
				"Aim for 8-14 chapters. target_pages should roughly sum to the total pages.",
		},
		string(model.StagePlan): {
			System: "Create a concrete chapter plan.\n" +
				"Return ONLY JSON with fields: number(int), title(str), " +
				"objectives(list[str]), key_ideas(list[str]), image_prompts(list[{purpose, prompt}]).",
			User: "Book spec: %s\nChapter: %s\nWords per page: %d\n" +
				"Be specific and avoid repetition.",
		},
		string(model.StageDraft): {
			System: "Draft a coherent, non-repetitive chapter that follows the plan and meets the word budget.",
			User: "Spec: %s\nChapter plan: %s\nTarget words: %d\n" +
				"Write in clear, engaging prose. Do not exceed the target by more than 5%%.",
		},
		KeyTOCLines: {
			System: "List the chapters as numbered lines only.",
			User:   "Book spec: %s\nTotal pages: %d",
		},
	}
}

// Load returns the defaults merged with overrides from path (if non-empty).
// Overrides replace whole templates per key; a missing file is an error,
// an empty path is not.
func Load(path string) (Set, error) {
	set := Defaults()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read overrides %s", path)
	}

	var overrides map[string]Template
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "prompt: parse overrides")
	}
	for key, tmpl := range overrides {
		set[key] = tmpl
	}
	return set, nil
}
