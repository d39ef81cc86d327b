package adapter

import (
	"context"
	"mime"
	"strconv"
	"strings"

	"github.com/m-mizutani/deepfocus/pkg/audio"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	defaultGeminiSpeechModel = "gemini-2.5-flash-preview-tts"
	defaultGeminiSampleRate  = 24000
)

// ModelGenerator is satisfied by (*genai.Client).Models
type ModelGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSpeech renders speech with a Gemini TTS model and a prebuilt voice
type GeminiSpeech struct {
	models ModelGenerator
	model  string
}

type GeminiSpeechOption func(*GeminiSpeech)

func WithSpeechModel(model string) GeminiSpeechOption {
	return func(s *GeminiSpeech) {
		s.model = NormalizeModelName(model)
	}
}

func NewGeminiSpeech(models ModelGenerator, opts ...GeminiSpeechOption) *GeminiSpeech {
	s := &GeminiSpeech{
		models: models,
		model:  defaultGeminiSpeechModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadVoice accepts any prebuilt voice name; the API rejects unknown names at synthesis time
func (s *GeminiSpeech) LoadVoice(ctx context.Context, voiceID string) (*Voice, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, goerr.New("voice name is required")
	}
	return &Voice{ID: voiceID, Name: voiceID}, nil
}

func (s *GeminiSpeech) Synthesize(ctx context.Context, voice *Voice, text string) (*Audio, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: voice.ID,
				},
			},
		},
	}

	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(text), config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate speech", goerr.V("model", s.model))
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.New("empty speech response", goerr.V("model", s.model))
	}

	var pcm []byte
	sampleRate := 0
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		pcm = append(pcm, part.InlineData.Data...)
		if sampleRate == 0 {
			sampleRate = sampleRateFromMIME(part.InlineData.MIMEType)
		}
	}

	if len(pcm) == 0 {
		return nil, goerr.New("no audio data in speech response", goerr.V("model", s.model))
	}
	if sampleRate == 0 {
		sampleRate = defaultGeminiSampleRate
	}

	return &Audio{
		Samples:    audio.DecodePCM16LE(pcm),
		SampleRate: sampleRate,
	}, nil
}

// sampleRateFromMIME reads the rate parameter of e.g. "audio/L16;codec=pcm;rate=24000"
func sampleRateFromMIME(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil {
		return 0
	}
	return rate
}
