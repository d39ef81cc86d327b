package triage

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

//go:embed prompt/query.md
var queryPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

var queryPromptTmpl = template.Must(template.New("query").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
}).Parse(queryPromptRaw))

const (
	answerTemperature     = 0.2
	answerMaxOutputTokens = 1200
)

func buildSystemPrompt() (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Fallback": model.FallbackResponse,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}
	return strings.TrimSpace(buf.String()), nil
}

func buildQueryPrompt(query string, lines []string) (string, error) {
	var buf bytes.Buffer
	if err := queryPromptTmpl.Execute(&buf, map[string]any{
		"Query": query,
		"Lines": lines,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute query prompt template")
	}
	return strings.TrimSpace(buf.String()), nil
}

// generateAnswer asks the model only when there is context. Service failures are
// returned as errors, never replaced by the fallback phrase.
func (u *UseCase) generateAnswer(ctx context.Context, query string, lines []string) (string, error) {
	if len(lines) == 0 {
		logging.From(ctx).Debug("no context retrieved, using fallback")
		return model.FallbackResponse, nil
	}

	systemPrompt, err := buildSystemPrompt()
	if err != nil {
		return "", err
	}
	prompt, err := buildQueryPrompt(query, lines)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Temperature:       genai.Ptr[float32](answerTemperature),
		MaxOutputTokens:   answerMaxOutputTokens,
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "LLM generation failed", goerr.T(model.TagUpstream))
	}

	return NormalizeAnswer(ExtractText(resp)), nil
}

// ExtractText joins the non-thought text parts of the first candidate with a single space
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}

		var parts []string
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	}

	return ""
}

// NormalizeAnswer maps empty or "nothing urgent" answers to the exact fallback phrase
func NormalizeAnswer(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(strings.ToLower(text), "nothing urgent") {
		return model.FallbackResponse
	}
	return text
}
