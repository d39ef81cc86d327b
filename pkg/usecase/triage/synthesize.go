package triage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/audio"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const maxArtifactNameAttempts = 3

// Artifact is a WAV file on scratch storage. It must be released once sent.
type Artifact struct {
	Path       string
	SampleRate int

	once sync.Once
	err  error
}

// Release deletes the file. Calling it more than once is safe.
func (a *Artifact) Release() error {
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.err = goerr.Wrap(err, "failed to remove audio artifact", goerr.V("path", a.Path))
		}
	})
	return a.err
}

// Synthesizer renders response text to audio with a speech engine and voice
// loaded once at startup and shared by every request.
type Synthesizer struct {
	speech adapter.Speech
	voice  *adapter.Voice
	dir    string
}

// NewSynthesizer resolves the voice and prepares the scratch directory
func NewSynthesizer(ctx context.Context, speech adapter.Speech, voiceID, dir string) (*Synthesizer, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create audio directory", goerr.V("dir", dir))
	}

	voice, err := speech.LoadVoice(ctx, voiceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load voice", goerr.V("voice_id", voiceID))
	}

	return &Synthesizer{
		speech: speech,
		voice:  voice,
		dir:    dir,
	}, nil
}

// Synthesize writes text as a WAV artifact. It returns nil if no artifact could
// be produced; the failure is logged here.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) *Artifact {
	logger := logging.From(ctx)

	rendered, err := s.speech.Synthesize(ctx, s.voice, text)
	if err != nil {
		logger.Error("speech synthesis failed", logging.ErrAttr(err))
		return nil
	}
	if rendered == nil || len(rendered.Samples) == 0 {
		logger.Error("speech synthesis returned no samples")
		return nil
	}

	f, err := s.createArtifactFile()
	if err != nil {
		logger.Error("failed to create audio artifact", logging.ErrAttr(err))
		return nil
	}

	artifact := &Artifact{Path: f.Name(), SampleRate: rendered.SampleRate}

	writeErr := audio.WriteWAV(f, rendered.Samples, rendered.SampleRate)
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		logger.Error("failed to write audio artifact", logging.ErrAttr(err), "path", artifact.Path)
		if err := artifact.Release(); err != nil {
			logger.Warn("failed to remove partial audio artifact", logging.ErrAttr(err))
		}
		return nil
	}

	logger.Debug("audio artifact written",
		"path", artifact.Path,
		"sample_rate", artifact.SampleRate,
		"samples", len(rendered.Samples))

	return artifact
}

// Render acquires an artifact, hands it to use and always releases it afterwards
func (s *Synthesizer) Render(ctx context.Context, text string, use func(*Artifact) error) error {
	artifact := s.Synthesize(ctx, text)
	if artifact == nil {
		return goerr.New("Failed to generate audio file", goerr.T(model.TagSynthesis))
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			logging.From(ctx).Warn("failed to release audio artifact", logging.ErrAttr(err))
		}
	}()

	return use(artifact)
}

func (s *Synthesizer) createArtifactFile() (*os.File, error) {
	var lastErr error
	for range maxArtifactNameAttempts {
		path := filepath.Join(s.dir, "voice_response_"+artifactSuffix()+".wav")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			return f, nil
		}
		lastErr = err
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	return nil, goerr.Wrap(lastErr, "failed to create audio file", goerr.V("dir", s.dir))
}

func artifactSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
