package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"clinic-voice-go/internal/audio"
	"clinic-voice-go/internal/callflow"
	"clinic-voice-go/internal/config"
	"clinic-voice-go/internal/dataset"
	"clinic-voice-go/internal/handler"
	"clinic-voice-go/internal/intent"
	"clinic-voice-go/internal/logger"
	"clinic-voice-go/internal/paramstore"
	"clinic-voice-go/internal/processor"
	"clinic-voice-go/internal/recording"
	"clinic-voice-go/internal/textnorm"
	"clinic-voice-go/internal/transcription"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.LoggerOptions())
	log.WithField("service", "clinic-voice-go").WithField("environment", cfg.Log.Environment).Info("starting service")
	if envErr != nil {
		log.WithField("reason", envErr.Error()).Debug("no .env file, using process environment only")
	}

	if cfg.Speech.APIKey == "" && cfg.Speech.APIKeyParam != "" {
		key, err := resolveAPIKey(ctx, cfg.Speech.APIKeyParam)
		if err != nil {
			log.WithError(err).WithField("param", cfg.Speech.APIKeyParam).Fatal("failed to resolve speech credential")
		}
		cfg.Speech.APIKey = key
		log.WithField("param", cfg.Speech.APIKeyParam).Info("speech credential loaded from parameter store")
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	cleaner, classifier, err := loadTables(cfg.Pipeline.KeywordBook, log)
	if err != nil {
		log.WithError(err).WithField("keyword_book", cfg.Pipeline.KeywordBook).Fatal("failed to load keyword book")
	}

	proc := processor.New(
		newFetcher(cfg, log),
		audio.NewNormalizer(cfg.Pipeline.FFmpegPath),
		newTranscriber(cfg, log),
		processor.WithCleaner(cleaner),
		processor.WithClassifier(classifier),
		processor.WithLogger(log.WithComponent("processor")),
	)

	ctrl := callflow.NewController(proc, callflow.Settings{
		Language:        cfg.Telephony.SayLanguage,
		Voice:           cfg.Telephony.SayVoice,
		MenuTimeoutSec:  cfg.Telephony.MenuTimeoutSec,
		MaxRecordingSec: cfg.Telephony.MaxRecordingSec,
		OperatorNumber:  cfg.Telephony.OperatorNumber,
		PipelineTimeout: cfg.PipelineBudget(),
	}, log)

	router := handler.New(ctrl, proc, cfg.Server.BaseURL, log).Router()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}
	log.WithField("addr", cfg.Server.Addr).WithField("base_url", cfg.Server.BaseURL).
		WithField("pipeline_budget", cfg.PipelineBudget().String()).Info("listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("server stopped")
}

func resolveAPIKey(ctx context.Context, param string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	store, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return paramstore.ResolveSecret(ctx, store, "", param)
}

// loadTables extends the built-in replacement and keyword tables with the
// optional workbook.
func loadTables(path string, log *logger.Logger) (*textnorm.Normalizer, *intent.Classifier, error) {
	if path == "" {
		return textnorm.Default(), intent.Default(), nil
	}
	book, err := dataset.LoadKeywordBook(path)
	if err != nil {
		return nil, nil, err
	}
	cleaner, err := textnorm.New(append(textnorm.DefaultReplacements(), book.Replacements...))
	if err != nil {
		return nil, nil, err
	}
	log.WithField("keyword_book", path).
		WithField("replacements", len(book.Replacements)).
		WithField("intent_groups", len(book.Keywords)).
		WithField("skipped_rows", book.Skipped).
		Info("keyword book loaded")
	return cleaner, intent.NewClassifier(intent.MergeRules(intent.DefaultRules(), book.Keywords)), nil
}

func newFetcher(cfg *config.Config, log *logger.Logger) *recording.Fetcher {
	opts := []recording.Option{
		recording.WithRetry(cfg.RetryPolicy(), nil),
		recording.WithLogger(log.WithComponent("recording")),
	}
	if cfg.Telephony.AccountSID != "" && cfg.Telephony.AuthToken != "" {
		opts = append(opts, recording.WithBasicAuth(cfg.Telephony.AccountSID, cfg.Telephony.AuthToken))
	}
	return recording.NewFetcher(cfg.Pipeline.DownloadTimeout, opts...)
}

func newTranscriber(cfg *config.Config, log *logger.Logger) processor.Transcriber {
	if cfg.Speech.Mock {
		log.WithField("transcript", cfg.Speech.MockTranscript).Warn("USE_MOCK_TRANSCRIBE is set, speech API disabled")
		return transcription.Static{Text: cfg.Speech.MockTranscript}
	}
	return transcription.New(transcription.Config{
		APIKey:   cfg.Speech.APIKey,
		BaseURL:  cfg.Speech.BaseURL,
		Model:    cfg.Speech.Model,
		Language: cfg.Speech.Language,
		Timeout:  cfg.Speech.Timeout,
		Policy:   cfg.RetryPolicy(),
	}, transcription.WithLogger(log.WithComponent("transcription")))
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
