package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/deepfocus/pkg/adapter"
	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/policy"
	"github.com/m-mizutani/deepfocus/pkg/repository"
	"github.com/m-mizutani/deepfocus/pkg/usecase/triage"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const sqliteFileName = "deepfocus.db"

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Repository
	storeBackend string
	dataDir      string
	project      string
	database     string
	collection   string

	// LLM and embedding
	geminiAPIKey        string
	geminiProject       string
	geminiLocation      string
	llmModel            string
	embeddingBackend    string
	embeddingModel      string
	embeddingDimensions int64
	openaiAPIKey        string
	openaiBaseURL       string
	openaiModel         string

	// Speech
	ttsBackend     string
	ttsVoice       string
	ttsModel       string
	ttsSerialize   bool
	cartesiaAPIKey string
	audioDir       string

	// Retrieval
	topK      int64
	policyDir string

	gemini *adapter.GeminiClient
}

// globalFlags returns logging flags shared by every command
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// storeFlags returns flags for the vector store
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Vector store backend (sqlite, firestore)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("DEEPFOCUS_STORE"),
			Destination: &cfg.storeBackend,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory of the SQLite store",
			Value:       "./data",
			Sources:     cli.EnvVars("DEEPFOCUS_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Firestore collection of notifications",
			Value:       "notifications",
			Sources:     cli.EnvVars("FIRESTORE_COLLECTION"),
			Destination: &cfg.collection,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini Developer API key. Vertex AI is used when empty",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Generative model for answers",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
		&cli.StringFlag{
			Name:        "embedding",
			Usage:       "Embedding backend (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("DEEPFOCUS_EMBEDDING"),
			Destination: &cfg.embeddingBackend,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Truncate Gemini embeddings to this size (0 keeps the model default)",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDimensions,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "API key of the OpenAI compatible embedding server",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of the OpenAI compatible embedding server",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-embedding-model",
			Usage:       "Embedding model of the OpenAI compatible server",
			Value:       "text-embedding-3-small",
			Sources:     cli.EnvVars("OPENAI_EMBEDDING_MODEL"),
			Destination: &cfg.openaiModel,
		},
	}
}

// speechFlags returns flags for text-to-speech
func speechFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tts",
			Usage:       "Speech backend (gemini, cartesia)",
			Value:       "gemini",
			Sources:     cli.EnvVars("DEEPFOCUS_TTS"),
			Destination: &cfg.ttsBackend,
		},
		&cli.StringFlag{
			Name:        "tts-voice",
			Usage:       "Voice name (Gemini prebuilt voice) or voice ID (Cartesia)",
			Value:       "Kore",
			Sources:     cli.EnvVars("TTS_VOICE"),
			Destination: &cfg.ttsVoice,
		},
		&cli.StringFlag{
			Name:        "tts-model",
			Usage:       "Gemini speech model",
			Sources:     cli.EnvVars("GEMINI_TTS_MODEL"),
			Destination: &cfg.ttsModel,
		},
		&cli.BoolFlag{
			Name:        "tts-serialize",
			Usage:       "Run one synthesis at a time",
			Sources:     cli.EnvVars("TTS_SERIALIZE"),
			Destination: &cfg.ttsSerialize,
		},
		&cli.StringFlag{
			Name:        "cartesia-api-key",
			Usage:       "Cartesia API key",
			Sources:     cli.EnvVars("CARTESIA_API_KEY"),
			Destination: &cfg.cartesiaAPIKey,
		},
		&cli.StringFlag{
			Name:        "audio-dir",
			Usage:       "Scratch directory for audio artifacts (defaults to the system temp dir)",
			Sources:     cli.EnvVars("DEEPFOCUS_AUDIO_DIR"),
			Destination: &cfg.audioDir,
		},
	}
}

// retrievalFlags returns flags for ranking and ingest filtering
func retrievalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Default number of notifications retrieved per query (1-50)",
			Value:       model.DefaultTopK,
			Sources:     cli.EnvVars("TOP_K"),
			Destination: &cfg.topK,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego mute policies applied at ingest",
			Sources:     cli.EnvVars("DEEPFOCUS_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx.
// Logs go to stderr so that stdout stays clean for command output and MCP stdio.
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, logging.Format(cfg.logFormat), os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.storeBackend {
	case "sqlite":
		if cfg.dataDir == "" {
			return nil, goerr.New("data-dir is required")
		}
		repo, err := repository.NewSQLite(filepath.Join(cfg.dataDir, sqliteFileName))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database,
			repository.WithCollection(cfg.collection))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil

	default:
		return nil, goerr.New("unknown store backend", goerr.V("store", cfg.storeBackend))
	}
}

// newGemini creates the Gemini client once and shares it between generation, embedding and speech
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.gemini != nil {
		return cfg.gemini, nil
	}

	apiKey := strings.TrimSpace(cfg.geminiAPIKey)
	if apiKey == "" && cfg.geminiProject == "" {
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}
	if apiKey == "" && cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	opts := []adapter.GeminiOption{
		adapter.WithGenerativeModel(cfg.llmModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	}
	if cfg.embeddingDimensions > 0 {
		opts = append(opts, adapter.WithEmbeddingDimensions(int32(cfg.embeddingDimensions)))
	}

	client, err := adapter.NewGemini(ctx, adapter.GeminiCredential{
		APIKey:   apiKey,
		Project:  cfg.geminiProject,
		Location: cfg.geminiLocation,
	}, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}

	cfg.gemini = client
	return client, nil
}

// newEmbedder creates the embedding backend
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	switch cfg.embeddingBackend {
	case "gemini":
		return cfg.newGemini(ctx)

	case "openai":
		if cfg.openaiModel == "" {
			return nil, goerr.New("openai-embedding-model is required")
		}
		var opts []adapter.OpenAIOption
		if cfg.openaiBaseURL != "" {
			opts = append(opts, adapter.WithOpenAIBaseURL(cfg.openaiBaseURL))
		}
		return adapter.NewOpenAIEmbedder(cfg.openaiAPIKey, cfg.openaiModel, opts...), nil

	default:
		return nil, goerr.New("unknown embedding backend", goerr.V("embedding", cfg.embeddingBackend))
	}
}

// newSpeech creates the speech engine
func (cfg *config) newSpeech(ctx context.Context) (adapter.Speech, error) {
	var engine adapter.Speech

	switch cfg.ttsBackend {
	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		var opts []adapter.GeminiSpeechOption
		if cfg.ttsModel != "" {
			opts = append(opts, adapter.WithSpeechModel(cfg.ttsModel))
		}
		engine = adapter.NewGeminiSpeech(gemini.Client().Models, opts...)

	case "cartesia":
		if cfg.cartesiaAPIKey == "" {
			return nil, goerr.New("cartesia-api-key is required")
		}
		engine = adapter.NewCartesiaSpeech(cfg.cartesiaAPIKey)

	default:
		return nil, goerr.New("unknown speech backend", goerr.V("tts", cfg.ttsBackend))
	}

	if cfg.ttsSerialize {
		engine = adapter.Serialize(engine)
	}
	return engine, nil
}

// newSynthesizer loads the voice once and prepares the scratch directory
func (cfg *config) newSynthesizer(ctx context.Context) (*triage.Synthesizer, error) {
	speech, err := cfg.newSpeech(ctx)
	if err != nil {
		return nil, err
	}

	synth, err := triage.NewSynthesizer(ctx, speech, cfg.ttsVoice, cfg.audioDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create synthesizer")
	}
	return synth, nil
}

// newPolicy returns nil when no policy directory or no policy file is configured
func (cfg *config) newPolicy(ctx context.Context) (*policy.Mute, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}

	mute, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load mute policy")
	}
	if mute != nil {
		logging.From(ctx).Info("mute policy loaded", "files", mute.Files())
	}
	return mute, nil
}

// newUseCase wires the triage use case over repo
func (cfg *config) newUseCase(ctx context.Context, repo repository.Repository) (*triage.UseCase, error) {
	if err := model.ValidateDefaultTopK(int(cfg.topK)); err != nil {
		return nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	opts := []triage.Option{triage.WithTopK(int(cfg.topK))}

	mute, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if mute != nil {
		opts = append(opts, triage.WithMutePolicy(mute))
	}

	return triage.New(repo, embedder, gemini, opts...), nil
}
