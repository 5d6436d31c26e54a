// Command squawk runs the half-duplex voice dispatch loop. The receiver
// subcommand captures microphone audio and drops transcription records; the
// transmitter subcommand picks them up and talks back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/varactor/squawk/internal/archive"
	"github.com/varactor/squawk/internal/config"
	"github.com/varactor/squawk/internal/dispatch"
	"github.com/varactor/squawk/internal/dropdir"
	"github.com/varactor/squawk/internal/health"
	"github.com/varactor/squawk/internal/lockfile"
	"github.com/varactor/squawk/internal/observe"
	"github.com/varactor/squawk/internal/persona"
	"github.com/varactor/squawk/internal/playback"
	"github.com/varactor/squawk/internal/receiver"
	"github.com/varactor/squawk/internal/resilience"
	"github.com/varactor/squawk/internal/segment"
	"github.com/varactor/squawk/internal/tools"
	"github.com/varactor/squawk/pkg/audio"
	"github.com/varactor/squawk/pkg/audio/portaudio"
	"github.com/varactor/squawk/pkg/provider/llm"
	llmanyllm "github.com/varactor/squawk/pkg/provider/llm/anyllm"
	llmopenai "github.com/varactor/squawk/pkg/provider/llm/openai"
	"github.com/varactor/squawk/pkg/provider/stt"
	sttopenai "github.com/varactor/squawk/pkg/provider/stt/openai"
	sttwhisper "github.com/varactor/squawk/pkg/provider/stt/whisper"
	"github.com/varactor/squawk/pkg/provider/tts"
	"github.com/varactor/squawk/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/varactor/squawk/pkg/provider/tts/openai"
	"github.com/varactor/squawk/pkg/provider/tts/unrealspeech"
)

func main() {
	os.Exit(run())
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: squawk <subcommand> [flags]

Subcommands:
  receiver     capture microphone audio, transcribe it, and write records
               into the drop directory
  transmitter  watch the drop directory, generate responses, and play them
  history      query the exchange archive

Run "squawk <subcommand> -h" for subcommand flags.
`)
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}

	switch os.Args[1] {
	case "receiver":
		return runReceiver(os.Args[2:])
	case "transmitter":
		return runTransmitter(os.Args[2:])
	case "history":
		return runHistory(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "squawk: unknown subcommand %q\n", os.Args[1])
		usage()
		return 2
	}
}

// ── Receiver ──────────────────────────────────────────────────────────────────

func runReceiver(args []string) int {
	fl := flag.NewFlagSet("receiver", flag.ExitOnError)
	configPath := fl.String("config", "config.yaml", "path to the YAML configuration file")
	debug := fl.Bool("debug", false, "write per-utterance and whole-session WAV recordings")
	fl.Parse(args)

	fsys := afero.NewOsFs()

	cfg, err := config.Load(fsys, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "squawk: %v\n", err)
		return 1
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "squawk-receiver"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer shutdownTelemetry(shutdown)

	sttProvider, err := buildSTT(cfg)
	if err != nil {
		slog.Error("stt provider init failed", "err", err, "name", cfg.Providers.STT.Name)
		return 1
	}
	sttProvider = resilience.WrapSTT(sttProvider, resilience.BreakerConfig{Name: "stt"})

	store, err := dropdir.NewStore(fsys, cfg.Paths.DropDir)
	if err != nil {
		slog.Error("drop directory init failed", "err", err)
		return 1
	}

	source, err := portaudio.NewCaptureStream(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FramesPerBuffer)
	if err != nil {
		slog.Error("audio capture init failed", "err", err)
		return 1
	}

	checkMicLevel(ctx, cfg)

	rcv := receiver.New(receiver.Config{
		Source: source,
		STT:    sttProvider,
		Store:  store,
		Lock:   lockfile.New(fsys, cfg.Paths.LockFile),
		Segment: segment.Config{
			SampleRate:      cfg.Audio.SampleRate,
			Channels:        cfg.Audio.Channels,
			Threshold:       cfg.Audio.Threshold,
			SilenceDuration: cfg.Audio.SilenceDuration.Seconds(),
			MinDuration:     cfg.Audio.MinDuration.Seconds(),
			MaxDuration:     cfg.Audio.MaxDuration.Seconds(),
			PreRoll:         cfg.Audio.PreRoll.Seconds(),
			QueueSize:       cfg.Audio.QueueSize,
		},
		Fs:       fsys,
		Debug:    *debug,
		DebugDir: cfg.Paths.DebugDir,
	})

	slog.Info("receiver listening",
		"sample_rate", cfg.Audio.SampleRate,
		"threshold", cfg.Audio.Threshold,
		"drop_dir", cfg.Paths.DropDir,
		"stt", cfg.Providers.STT.Name,
		"debug", *debug,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rcv.Run(gctx) })
	if cfg.MetricsAddr != "" {
		srv := health.NewServer(cfg.MetricsAddr, dropDirChecker(store))
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("receiver error", "err", err)
		return 1
	}
	slog.Info("receiver stopped")
	return 0
}

// dropDirChecker reports whether the drop directory is still listable.
func dropDirChecker(store *dropdir.Store) health.Checker {
	return health.Checker{
		Name: "drop_dir",
		Check: func(context.Context) error {
			_, err := store.Pending()
			return err
		},
	}
}

// checkMicLevel records a short sample at startup and warns when its energy
// sits below the segmentation threshold, which usually means a muted or
// wrongly selected input device.
func checkMicLevel(ctx context.Context, cfg *config.Config) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	clip, err := portaudio.Record(probeCtx, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.SampleRate/2)
	if err != nil {
		slog.Warn("microphone level check failed", "err", err)
		return
	}
	level := audio.RMS(clip.Samples)
	if level < cfg.Audio.Threshold {
		slog.Warn("microphone level below voice threshold; check input device and gain",
			"level", level, "threshold", cfg.Audio.Threshold)
	} else {
		slog.Debug("microphone level ok", "level", level)
	}
}

// ── Transmitter ───────────────────────────────────────────────────────────────

func runTransmitter(args []string) int {
	fl := flag.NewFlagSet("transmitter", flag.ExitOnError)
	configPath := fl.String("config", "config.yaml", "path to the YAML configuration file")
	profileName := fl.String("profile", "", "persona profile directory name under profiles_dir (required)")
	debug := fl.Bool("debug", false, "keep synthesized audio artifacts after playback")
	fl.Parse(args)

	if *profileName == "" {
		fmt.Fprintln(os.Stderr, "squawk: transmitter requires -profile")
		fl.Usage()
		return 2
	}

	fsys := afero.NewOsFs()

	cfg, err := config.Load(fsys, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "squawk: %v\n", err)
		return 1
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "squawk-transmitter"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer shutdownTelemetry(shutdown)

	profile, err := persona.LoadProfile(fsys, filepath.Join(cfg.Paths.ProfilesDir, *profileName))
	if err != nil {
		slog.Error("profile load failed", "err", err, "profile", *profileName)
		return 1
	}

	store, err := dropdir.NewStore(fsys, cfg.Paths.DropDir)
	if err != nil {
		slog.Error("drop directory init failed", "err", err)
		return 1
	}

	registry := tools.NewRegistry()
	if cfg.Paths.InventoryFile != "" {
		inv, err := tools.LoadInventory(fsys, cfg.Paths.InventoryFile)
		if err != nil {
			slog.Error("inventory load failed", "err", err, "path", cfg.Paths.InventoryFile)
			return 1
		}
		if err := registry.Register(inv); err != nil {
			slog.Error("tool registration failed", "err", err)
			return 1
		}
	}

	llmProvider, err := buildLLM(cfg)
	if err != nil {
		slog.Error("llm provider init failed", "err", err, "name", cfg.Providers.LLM.Name)
		return 1
	}
	llmProvider = resilience.WrapLLM(llmProvider, resilience.BreakerConfig{Name: "llm"})

	ttsProvider, err := buildTTS(cfg)
	if err != nil {
		slog.Error("tts provider init failed", "err", err, "name", cfg.Providers.TTS.Name)
		return 1
	}
	ttsProvider = resilience.WrapTTS(ttsProvider, resilience.BreakerConfig{Name: "tts"})

	var (
		archiver     dispatch.Archiver
		archiveStore *archive.Store
	)
	if cfg.Archive.DSN != "" {
		archiveStore, err = archive.Open(ctx, cfg.Archive.DSN)
		if err != nil {
			slog.Error("archive init failed", "err", err)
			return 1
		}
		defer archiveStore.Close()
		archiver = archiveStore
		slog.Info("exchange archive enabled")
	}

	// A lock left behind by a crashed run would mute the receiver forever.
	lock := lockfile.New(fsys, cfg.Paths.LockFile)
	lock.ClearStale()

	engine := dispatch.New(dispatch.Config{
		Store:               store,
		Profile:             profile,
		Registry:            registry,
		LLM:                 llmProvider,
		Lock:                lock,
		TTSProvider:         ttsProvider.Name(),
		Fs:                  fsys,
		ConversationLog:     cfg.Paths.ConversationLog,
		Archiver:            archiver,
		PollInterval:        cfg.Dispatch.PollInterval,
		HistoryLimit:        cfg.Dispatch.HistoryLimit,
		HistoryExpiration:   cfg.Dispatch.HistoryExpiration,
		ConversationTimeout: cfg.Dispatch.ConversationTimeout,
		QueueSize:           cfg.Dispatch.QueueSize,
	})

	worker := playback.New(playback.Config{
		TTS:           ttsProvider,
		Player:        portaudio.NewPlayer(fsys),
		Lock:          lock,
		Fs:            fsys,
		WorkDir:       cfg.Paths.WorkDir,
		KeepArtifacts: cfg.Dispatch.KeepArtifacts || *debug,
	})

	slog.Info("transmitter running",
		"profile", *profileName,
		"personas", len(profile.Personas()),
		"drop_dir", cfg.Paths.DropDir,
		"llm", cfg.Providers.LLM.Name,
		"tts", cfg.Providers.TTS.Name,
		"tools", registry.Names(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx, engine.Responses()) })
	if cfg.MetricsAddr != "" {
		checkers := []health.Checker{dropDirChecker(store)}
		if archiveStore != nil {
			checkers = append(checkers, health.Checker{Name: "archive", Check: archiveStore.Ping})
		}
		srv := health.NewServer(cfg.MetricsAddr, checkers...)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("transmitter error", "err", err)
		return 1
	}
	slog.Info("transmitter stopped")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildSTT(cfg *config.Config) (stt.Provider, error) {
	entry := cfg.Providers.STT
	switch entry.Name {
	case "openai":
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, sttopenai.WithLanguage(entry.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(opts...), nil
	case "whisper":
		var opts []sttwhisper.Option
		if entry.Language != "" {
			opts = append(opts, sttwhisper.WithLanguage(entry.Language))
		}
		return sttwhisper.New(entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildTTS(cfg *config.Config) (tts.Provider, error) {
	entry := cfg.Providers.TTS
	switch entry.Name {
	case "openai":
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		return ttsopenai.New(opts...), nil
	case "elevenlabs":
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	case "unrealspeech":
		return unrealspeech.New(entry.APIKey)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

func buildLLM(cfg *config.Config) (llm.Provider, error) {
	entry := cfg.Providers.LLM
	switch entry.Name {
	case "openai":
		var opts []llmopenai.Option
		if entry.Model != "" {
			opts = append(opts, llmopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(opts...), nil
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return llmanyllm.New(entry.Name, entry.Model, opts...)
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func shutdownTelemetry(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
}
