package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/deepfocus/pkg/audio"
	"github.com/m-mizutani/goerr/v2"
)

const (
	cartesiaBaseURL    = "https://api.cartesia.ai"
	cartesiaVersion    = "2025-04-16"
	cartesiaModel      = "sonic-3"
	cartesiaSampleRate = 24000
)

// CartesiaSpeech renders speech through the Cartesia bytes endpoint as raw PCM
type CartesiaSpeech struct {
	apiKey     string
	baseURL    string
	model      string
	sampleRate int
	httpClient *http.Client
}

type CartesiaOption func(*CartesiaSpeech)

func WithCartesiaBaseURL(baseURL string) CartesiaOption {
	return func(c *CartesiaSpeech) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithCartesiaModel(model string) CartesiaOption {
	return func(c *CartesiaSpeech) {
		c.model = model
	}
}

func WithCartesiaHTTPClient(client *http.Client) CartesiaOption {
	return func(c *CartesiaSpeech) {
		c.httpClient = client
	}
}

func NewCartesiaSpeech(apiKey string, opts ...CartesiaOption) *CartesiaSpeech {
	c := &CartesiaSpeech{
		apiKey:     apiKey,
		baseURL:    cartesiaBaseURL,
		model:      cartesiaModel,
		sampleRate: cartesiaSampleRate,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cartesiaVoiceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoadVoice checks that the voice exists so a bad voice id fails at startup
func (c *CartesiaSpeech) LoadVoice(ctx context.Context, voiceID string) (*Voice, error) {
	if voiceID == "" {
		return nil, goerr.New("voice id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices/"+url.PathEscape(voiceID), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create voice request")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch voice", goerr.V("voice_id", voiceID))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, goerr.New("cartesia voice lookup failed",
			goerr.V("voice_id", voiceID),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var v cartesiaVoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode voice", goerr.V("voice_id", voiceID))
	}

	return &Voice{ID: voiceID, Name: v.Name}, nil
}

type cartesiaTTSRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoiceSpec    `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

func (c *CartesiaSpeech) Synthesize(ctx context.Context, voice *Voice, text string) (*Audio, error) {
	body, err := json.Marshal(cartesiaTTSRequest{
		ModelID:    c.model,
		Transcript: text,
		Voice:      cartesiaVoiceSpec{Mode: "id", ID: voice.ID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.sampleRate,
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal TTS request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create TTS request")
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send TTS request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, goerr.New("cartesia TTS failed",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(errBody)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read TTS audio")
	}
	if len(pcm) == 0 {
		return nil, goerr.New("cartesia returned no audio")
	}

	return &Audio{
		Samples:    audio.DecodePCM16LE(pcm),
		SampleRate: c.sampleRate,
	}, nil
}

func (c *CartesiaSpeech) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
}
