package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"market-bot/internal/analysis"
	"market-bot/internal/card"
	"market-bot/internal/chunk"
	"market-bot/internal/domain"
	"market-bot/internal/intent"
)

type ContextStore interface {
	Get(ctx context.Context, userID string) (domain.ConversationContext, bool, error)
	Set(ctx context.Context, userID string, c domain.ConversationContext) error
	Clear(ctx context.Context, userID string) error
}

type MarketGateway interface {
	FetchQuote(ctx context.Context, symbol string, class domain.AssetClass) (domain.Quote, error)
	FetchCandles(ctx context.Context, symbol string, class domain.AssetClass) ([]domain.Candle, error)
}

type Classifier interface {
	Classify(text string, live *domain.ConversationContext) intent.Result
}

type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages []domain.Message) error
	Push(ctx context.Context, to string, messages []domain.Message) error
}

// Config holds the reply-shaping knobs. Zero values fall back to LINE limits.
type Config struct {
	MaxMessages      int
	MaxMessageLength int
	// PushOverflow sends chunks beyond MaxMessages with the push API instead
	// of dropping them.
	PushOverflow bool
}

type ReplyService struct {
	classifier Classifier
	contexts   ContextStore
	market     MarketGateway
	responder  *Responder
	messenger  Messenger
	cfg        Config
	logger     *slog.Logger
}

// EventInput is one inbound text message.
type EventInput struct {
	UserID     string
	ReplyToken string
	Text       string
}

// ReplyOutput is what the bot decided to say. Overflow holds messages that did
// not fit in the reply call.
type ReplyOutput struct {
	Intent   intent.Result
	Messages []domain.Message
	Overflow []domain.Message
}

func NewReplyService(
	classifier Classifier,
	contexts ContextStore,
	market MarketGateway,
	responder *Responder,
	messenger Messenger,
	cfg Config,
	logger *slog.Logger,
) (*ReplyService, error) {
	if classifier == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if contexts == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if market == nil {
		return nil, errors.New("usecase: market gateway must not be nil")
	}
	if responder == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > chunk.DefaultMaxCount {
		cfg.MaxMessages = chunk.DefaultMaxCount
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = chunk.DefaultMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyService{
		classifier: classifier,
		contexts:   contexts,
		market:     market,
		responder:  responder,
		messenger:  messenger,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "reply")),
	}, nil
}

// HandleEvent composes the answer for one message and sends it with the
// event's reply token.
func (s *ReplyService) HandleEvent(ctx context.Context, in EventInput) (ReplyOutput, error) {
	if strings.TrimSpace(in.ReplyToken) == "" {
		return ReplyOutput{}, newError(ErrorInvalidInput, "missing_reply_token", nil)
	}

	out := s.Compose(ctx, in.UserID, in.Text)
	if len(out.Messages) == 0 {
		return out, nil
	}

	if err := s.messenger.Reply(ctx, in.ReplyToken, out.Messages); err != nil {
		return out, upstreamError("line_reply", err)
	}
	s.deliverOverflow(ctx, in.UserID, out.Overflow)
	return out, nil
}

func (s *ReplyService) deliverOverflow(ctx context.Context, userID string, overflow []domain.Message) {
	if len(overflow) == 0 {
		return
	}
	if !s.cfg.PushOverflow || userID == "" {
		s.logger.InfoContext(ctx, "dropping overflow messages", slog.Int("count", len(overflow)))
		return
	}
	for start := 0; start < len(overflow); start += chunk.DefaultMaxCount {
		end := min(start+chunk.DefaultMaxCount, len(overflow))
		if err := s.messenger.Push(ctx, userID, overflow[start:end]); err != nil {
			// The reply already went out, so the event still succeeds.
			s.logger.WarnContext(ctx, "overflow push failed",
				slog.Int("dropped", len(overflow)-start),
				slog.Any("error", err),
			)
			return
		}
	}
}

// Compose classifies text against the user's live context and builds the
// reply. It does not fail: provider errors become user-facing text.
func (s *ReplyService) Compose(ctx context.Context, userID, text string) ReplyOutput {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReplyOutput{Intent: intent.Result{Kind: intent.KindFreeform}}
	}

	live := s.liveContext(ctx, userID)
	result := s.classifier.Classify(text, live)
	logger := s.logger.With(slog.String("intent", string(result.Kind)))

	out := ReplyOutput{Intent: result}
	switch {
	case result.IsSymbol():
		s.rememberSymbol(ctx, userID, result)
		out.Messages = []domain.Message{s.quoteMessage(ctx, result)}
	case result.Kind == intent.KindFollowUp && live != nil:
		hint := s.followUpContext(ctx, *live)
		out.Messages, out.Overflow = s.textMessages(s.responder.Generate(ctx, text, hint))
	default:
		if s.responder.Flagged(ctx, text) {
			logger.InfoContext(ctx, "input flagged by moderation")
			out.Messages = []domain.Message{domain.NewTextMessage(RefusalText)}
			break
		}
		out.Messages, out.Overflow = s.textMessages(s.responder.Generate(ctx, text, ""))
	}

	logger.DebugContext(ctx, "reply composed",
		slog.String("symbol", result.Symbol),
		slog.Int("messages", len(out.Messages)),
		slog.Int("overflow", len(out.Overflow)),
	)
	return out
}

func (s *ReplyService) liveContext(ctx context.Context, userID string) *domain.ConversationContext {
	if userID == "" {
		return nil
	}
	conv, ok, err := s.contexts.Get(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "context lookup failed, treating as absent", slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}
	return &conv
}

// rememberSymbol starts a fresh topic: the old context is cleared before the
// new one is written.
func (s *ReplyService) rememberSymbol(ctx context.Context, userID string, r intent.Result) {
	if userID == "" {
		return
	}
	if err := s.contexts.Clear(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "context clear failed", slog.Any("error", err))
	}
	err := s.contexts.Set(ctx, userID, domain.ConversationContext{Symbol: r.Symbol, AssetClass: r.AssetClass})
	if err != nil {
		s.logger.WarnContext(ctx, "context write failed", slog.Any("error", err))
	}
}

func (s *ReplyService) quoteMessage(ctx context.Context, r intent.Result) domain.Message {
	q, err := s.market.FetchQuote(ctx, r.Symbol, r.AssetClass)
	if err != nil {
		s.logger.WarnContext(ctx, "quote unavailable",
			slog.String("symbol", r.Symbol),
			slog.String("asset_class", string(r.AssetClass)),
			slog.Any("error", err),
		)
		return domain.NewTextMessage(apologyText(r.Symbol))
	}
	return card.BuildQuote(q)
}

// followUpContext gathers what is known about the context symbol. Missing
// data only thins the hint.
func (s *ReplyService) followUpContext(ctx context.Context, conv domain.ConversationContext) string {
	var quote *domain.Quote
	if q, err := s.market.FetchQuote(ctx, conv.Symbol, conv.AssetClass); err == nil {
		quote = &q
	} else {
		s.logger.WarnContext(ctx, "follow-up quote unavailable", slog.String("symbol", conv.Symbol), slog.Any("error", err))
	}

	var snap *analysis.Snapshot
	if candles, err := s.market.FetchCandles(ctx, conv.Symbol, conv.AssetClass); err == nil {
		computed := analysis.Compute(candles)
		snap = &computed
	} else {
		s.logger.WarnContext(ctx, "follow-up candles unavailable", slog.String("symbol", conv.Symbol), slog.Any("error", err))
	}
	return followUpHint(conv, quote, snap)
}

func (s *ReplyService) textMessages(text string) (messages, overflow []domain.Message) {
	chunks, rest := chunk.Split(text, s.cfg.MaxMessageLength, s.cfg.MaxMessages)
	if len(chunks) == 0 {
		chunks = []string{FallbackText}
	}
	return toTextMessages(chunks), toTextMessages(rest)
}

func toTextMessages(texts []string) []domain.Message {
	if len(texts) == 0 {
		return nil
	}
	out := make([]domain.Message, len(texts))
	for i, t := range texts {
		out[i] = domain.NewTextMessage(t)
	}
	return out
}
