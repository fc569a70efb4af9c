// Package intent classifies an incoming chat message as a symbol lookup, a
// follow-up on the previous symbol, or a free-form question.
package intent

import (
	"regexp"
	"strings"

	"market-bot/internal/domain"
)

type Kind string

const (
	KindStockSymbol  Kind = "STOCK_SYMBOL"
	KindCryptoSymbol Kind = "CRYPTO_SYMBOL"
	KindGold         Kind = "GOLD"
	KindFollowUp     Kind = "FOLLOW_UP"
	KindFreeform     Kind = "FREEFORM"
)

// GoldSymbol is the fixed symbol every gold request resolves to.
const GoldSymbol = "XAUUSD"

// Result is the outcome of classification. Symbol and AssetClass are empty for
// KindFreeform.
type Result struct {
	Kind       Kind
	Symbol     string
	AssetClass domain.AssetClass
}

// IsSymbol reports whether the result starts a new topic.
func (r Result) IsSymbol() bool {
	switch r.Kind {
	case KindStockSymbol, KindCryptoSymbol, KindGold:
		return true
	}
	return false
}

// Rule pairs a predicate with the extractor that builds its Result. live is the
// caller's unexpired context, or nil.
type Rule struct {
	Name  string
	Match func(text string, live *domain.ConversationContext) (Result, bool)
}

// Detector evaluates rules in order; the first match wins and KindFreeform is
// the fallback.
type Detector struct {
	rules []Rule
}

// NewDetector returns a Detector using DefaultRules.
func NewDetector() *Detector {
	return &Detector{rules: DefaultRules()}
}

// NewDetectorWithRules returns a Detector with a custom rule order.
func NewDetectorWithRules(rules []Rule) *Detector {
	return &Detector{rules: rules}
}

// Classify maps text to exactly one Kind.
func (d *Detector) Classify(text string, live *domain.ConversationContext) Result {
	text = strings.TrimSpace(text)
	for _, r := range d.rules {
		if res, ok := r.Match(text, live); ok {
			return res
		}
	}
	return Result{Kind: KindFreeform}
}

// DefaultRules is the production rule order. Symbol rules come before the
// follow-up rule so a new ticker always replaces the previous topic.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "stock_symbol", Match: matchStockSymbol},
		{Name: "crypto_symbol", Match: matchCrypto},
		{Name: "gold", Match: matchGold},
		{Name: "follow_up", Match: matchFollowUp},
	}
}

var stockSymbolRe = regexp.MustCompile(`^[A-Za-z]{1,6}$`)

func matchStockSymbol(text string, _ *domain.ConversationContext) (Result, bool) {
	if !stockSymbolRe.MatchString(text) {
		return Result{}, false
	}
	return Result{Kind: KindStockSymbol, Symbol: strings.ToUpper(text), AssetClass: domain.AssetStock}, true
}

var (
	cryptoTickerRe = regexp.MustCompile(`(?i)(?:^|[^a-z])(BTC|ETH|BNB|XRP|DOGE|AVAX|LTC|TRX|MATIC|SHIB|PEPE)/?(USDT|USDC|BUSD|USD|THB)?(?:$|[^a-z])`)

	// Tickers that are also English words need uppercase or a quote suffix.
	cryptoWordTickerRe = regexp.MustCompile(`(?:^|[^A-Za-z])(SOL|ADA|DOT|LINK|TON)/?(?:USDT|USDC|BUSD|USD|THB)?(?:$|[^A-Za-z])`)
	cryptoWordPairRe   = regexp.MustCompile(`(?i)(?:^|[^a-z])(sol|ada|dot|link|ton)/?(?:usdt|usdc|busd|usd|thb)(?:$|[^a-z])`)

	cryptoAliases = []struct{ alias, base string }{
		{"bitcoin", "BTC"},
		{"ethereum", "ETH"},
		{"solana", "SOL"},
		{"บิทคอยน์", "BTC"},
		{"บิตคอยน์", "BTC"},
	}
)

const cryptoQuote = "USDT"

func matchCrypto(text string, _ *domain.ConversationContext) (Result, bool) {
	for _, re := range []*regexp.Regexp{cryptoTickerRe, cryptoWordTickerRe, cryptoWordPairRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return cryptoResult(m[1]), true
		}
	}
	lower := strings.ToLower(text)
	for _, a := range cryptoAliases {
		if strings.Contains(lower, a.alias) {
			return cryptoResult(a.base), true
		}
	}
	return Result{}, false
}

func cryptoResult(base string) Result {
	return Result{
		Kind:       KindCryptoSymbol,
		Symbol:     strings.ToUpper(base) + cryptoQuote,
		AssetClass: domain.AssetCrypto,
	}
}

var goldRe = regexp.MustCompile(`(?i)(?:^|[^a-z])(gold|xau(?:usd)?)(?:$|[^a-z])`)

func matchGold(text string, _ *domain.ConversationContext) (Result, bool) {
	if goldRe.MatchString(text) || strings.Contains(text, "ทอง") {
		return Result{Kind: KindGold, Symbol: GoldSymbol, AssetClass: domain.AssetGold}, true
	}
	return Result{}, false
}

var (
	followUpWordRe = regexp.MustCompile(`(?i)\b(buy|sell|hold|support|resistance|target|trend|rsi|ema|vwap|why|should|outlook|entry|stop ?loss|analy[sz]e|analysis)\b`)

	followUpPhrases = []string{
		"น่าซื้อ", "ซื้อไหม", "ซื้อดี", "ขายไหม", "ควรซื้อ", "ควรขาย", "ถือต่อ",
		"แนวรับ", "แนวต้าน", "เป้า", "แนวโน้ม", "เทรนด์", "วิเคราะห์",
		"ตัวนี้", "ตัวเดิม", "ขึ้นไหม", "ลงไหม", "ไปต่อไหม", "ต่อไป",
	}
)

// HasFollowUpMarker reports whether text refers back to a previous topic.
func HasFollowUpMarker(text string) bool {
	if followUpWordRe.MatchString(text) {
		return true
	}
	for _, p := range followUpPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func matchFollowUp(text string, live *domain.ConversationContext) (Result, bool) {
	if live == nil || live.Symbol == "" || !HasFollowUpMarker(text) {
		return Result{}, false
	}
	return Result{Kind: KindFollowUp, Symbol: live.Symbol, AssetClass: live.AssetClass}, true
}
