package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"market-bot/handler"
	"market-bot/internal/contextstore"
	"market-bot/internal/domain"
	"market-bot/internal/integrations/binance"
	"market-bot/internal/integrations/finnhub"
	"market-bot/internal/integrations/line"
	"market-bot/internal/integrations/openai"
	"market-bot/internal/integrations/paramstore"
	"market-bot/internal/integrations/yahoo"
	"market-bot/internal/intent"
	"market-bot/internal/market"
	"market-bot/internal/repository"
	"market-bot/internal/scheduler"
	"market-bot/internal/server"
	"market-bot/internal/usecase"
)

func main() {
	onLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
	if !onLambda {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to load .env", "err", err)
		}
	}

	logger := newLogger(onLambda)
	slog.SetDefault(logger)
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	paramPrefix := os.Getenv("PARAM_PREFIX")
	contextTable := os.Getenv("CONTEXT_TABLE")
	contextTTL := envDuration("CONTEXT_TTL_SECONDS", contextstore.DefaultTTL)
	quoteCacheTTL := envDuration("QUOTE_CACHE_TTL_SECONDS", 60*time.Second)
	httpTimeout := envDuration("HTTP_TIMEOUT_SECONDS", market.DefaultTimeout)
	model := envString("OPENAI_MODEL", "gpt-4o-mini")

	// ---- AWS SDK config (only when something needs it) ----
	var (
		getter      paramstore.Getter
		dynamoTable *repository.Client
	)
	if paramPrefix != "" || contextTable != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			fatal("failed to load AWS config", err)
		}
		if paramPrefix != "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg), paramPrefix)
			if err != nil {
				fatal("failed to create SSM client", err)
			}
			getter = ssmClient
		}
		if contextTable != "" {
			dynamoTable, err = repository.New(awsdynamodb.NewFromConfig(cfg), contextTable, contextTTL)
			if err != nil {
				fatal("failed to create context table client", err)
			}
		}
	}

	openaiKey := paramstore.NewSecret(os.Getenv("OPENAI_API_KEY"), getter, "openai-token")
	lineToken := paramstore.NewSecret(os.Getenv("LINE_TOKEN"), getter, "line-token")
	finnhubKey := paramstore.NewSecret(os.Getenv("FINNHUB_API_KEY"), getter, "finnhub-token")
	for name, s := range map[string]*paramstore.Secret{"OPENAI_API_KEY": openaiKey, "LINE_TOKEN": lineToken, "FINNHUB_API_KEY": finnhubKey} {
		if !s.Configured() {
			fatal("credential is not configured", errors.New(name+" or PARAM_PREFIX must be set"))
		}
	}

	// ---- Context store ----
	var (
		contexts usecase.ContextStore
		memory   *contextstore.MemoryStore
	)
	if dynamoTable != nil {
		contexts = dynamoTable
	} else {
		memory = contextstore.NewMemoryStore(contextTTL)
		contexts = memory
	}

	// ---- Market data ----
	httpClient := &http.Client{Timeout: httpTimeout}
	finnhubClient, err := finnhub.NewClient(finnhubKey,
		finnhub.WithHTTPClient(httpClient),
		finnhub.WithLogger(logger),
	)
	if err != nil {
		fatal("failed to create Finnhub client", err)
	}
	yahooClient := yahoo.NewClient(yahoo.WithHTTPClient(httpClient))
	binanceClient := binance.NewClient(binance.WithHTTPClient(httpClient))

	gateway := market.NewGateway(map[domain.AssetClass]market.Route{
		domain.AssetStock:  {Quotes: finnhubClient, Candles: yahooClient},
		domain.AssetCrypto: {Quotes: binanceClient, Candles: binanceClient},
		domain.AssetGold:   {Quotes: yahooClient, Candles: yahooClient},
	},
		market.WithTimeout(httpTimeout),
		market.WithQuoteCache(quoteCacheTTL),
		market.WithLogger(logger),
	)

	// ---- LLM + messaging ----
	openaiClient, err := openai.NewClient(openaiKey,
		openai.WithBaseURL(os.Getenv("OPENAI_BASE_URL")),
		openai.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}
	responder, err := usecase.NewResponder(openaiClient, model, logger)
	if err != nil {
		fatal("failed to create responder", err)
	}
	lineClient, err := line.NewClient(lineToken, line.WithHTTPClient(httpClient))
	if err != nil {
		fatal("failed to create LINE client", err)
	}

	// ---- Handler ----
	replyService, err := usecase.NewReplyService(
		intent.NewDetector(),
		contexts,
		gateway,
		responder,
		lineClient,
		usecase.Config{
			MaxMessages:      envInt("MAX_REPLY_MESSAGES", 5),
			MaxMessageLength: envInt("MAX_MESSAGE_LENGTH", 900),
			PushOverflow:     envBool("PUSH_OVERFLOW", false),
		},
		logger,
	)
	if err != nil {
		fatal("failed to create reply service", err)
	}

	h, err := handler.NewHandler(replyService,
		handler.WithChannelSecret(os.Getenv("LINE_CHANNEL_SECRET")),
		handler.WithLogger(logger),
	)
	if err != nil {
		fatal("failed to create handler", err)
	}

	if onLambda {
		lambda.Start(h.Handle)
		return
	}
	serve(h, memory, gateway, logger)
}

// serve runs the HTTP listener with the cache sweeper until SIGINT/SIGTERM.
func serve(h *handler.Handler, memory *contextstore.MemoryStore, gateway *market.Gateway, logger *slog.Logger) {
	srv, err := server.NewServer(":"+envString("PORT", "3000"), h, logger)
	if err != nil {
		fatal("failed to create server", err)
	}

	sched := scheduler.New(logger)
	if memory != nil {
		sched.Add("contexts", memory)
	}
	sched.Add("quotes", scheduler.SweepFunc(gateway.SweepCache))
	if err := sched.Register(envString("SWEEP_CRON", scheduler.DefaultSpec)); err != nil {
		fatal("failed to register sweeper", err)
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("port", envString("PORT", "3000")))
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "err", err)
		}
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}
}

func newLogger(onLambda bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(envString("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if onLambda || strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envDuration reads a whole number of seconds. Negative values fall back to def;
// zero is kept so a cache can be disabled.
func envDuration(key string, def time.Duration) time.Duration {
	n := envInt(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
