package adapter

import (
	"context"
	"sync"
)

// Voice is a voice profile resolved once at startup
type Voice struct {
	ID   string
	Name string
}

// Audio is mono 16-bit PCM rendered by a speech engine
type Audio struct {
	Samples    []int16
	SampleRate int
}

// Speech is a text-to-speech engine. Implementations are created once per
// process and shared by all requests.
type Speech interface {
	// LoadVoice resolves a voice profile. Called once at startup.
	LoadVoice(ctx context.Context, voiceID string) (*Voice, error)
	// Synthesize renders text with the given voice
	Synthesize(ctx context.Context, voice *Voice, text string) (*Audio, error)
}

type serializedSpeech struct {
	mu     sync.Mutex
	engine Speech
}

// Serialize wraps an engine that is not safe for concurrent use so that only
// one synthesis runs at a time.
func Serialize(engine Speech) Speech {
	return &serializedSpeech{engine: engine}
}

func (s *serializedSpeech) LoadVoice(ctx context.Context, voiceID string) (*Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.LoadVoice(ctx, voiceID)
}

func (s *serializedSpeech) Synthesize(ctx context.Context, voice *Voice, text string) (*Audio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Synthesize(ctx, voice, text)
}
