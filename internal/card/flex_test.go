package card

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-bot/internal/domain"
)

func aapl() domain.Quote {
	return domain.Quote{
		Symbol:       "AAPL",
		AssetClass:   domain.AssetStock,
		Current:      150,
		Open:         148,
		PrevClose:    149,
		MarketStatus: domain.MarketOpen,
		FetchedAt:    time.Date(2024, 5, 1, 13, 30, 0, 0, time.UTC),
	}
}

// texts flattens every text node of the bubble body in order.
func texts(c *domain.FlexComponent) []string {
	var out []string
	if c == nil {
		return out
	}
	if c.Type == "text" {
		out = append(out, c.Text)
	}
	out = append(out, texts(c.Body)...)
	for i := range c.Contents {
		out = append(out, texts(&c.Contents[i])...)
	}
	return out
}

func priceLine(t *testing.T, msg domain.Message) domain.FlexComponent {
	t.Helper()
	require.NotNil(t, msg.Contents)
	require.NotNil(t, msg.Contents.Body)
	price := msg.Contents.Body.Contents[3]
	require.Len(t, price.Contents, 2)
	return price.Contents[1]
}

func TestBuildQuote_UpMove(t *testing.T) {
	msg := BuildQuote(aapl())

	require.Equal(t, "flex", msg.Type)
	require.Equal(t, "AAPL 150.00", msg.AltText)
	require.Equal(t, "bubble", msg.Contents.Type)

	line := priceLine(t, msg)
	require.Equal(t, "▲ 1.00 (0.67%)", line.Text)
	require.Equal(t, colorUp, line.Color)

	all := texts(msg.Contents)
	require.Contains(t, all, "AAPL")
	require.Contains(t, all, "OPEN")
	require.Contains(t, all, "150.00")
	require.Contains(t, all, "148.00")
	require.Contains(t, all, "149.00")
	require.Contains(t, all, "Updated 20:30 ICT")
	require.NotContains(t, all, "High")
}

func TestBuildQuote_DownMove(t *testing.T) {
	q := aapl()
	q.Current = 147
	line := priceLine(t, BuildQuote(q))
	require.Equal(t, "▼ 2.00 (1.34%)", line.Text)
	require.Equal(t, colorDown, line.Color)
}

func TestBuildQuote_FlatIsUp(t *testing.T) {
	q := aapl()
	q.Current = q.PrevClose
	line := priceLine(t, BuildQuote(q))
	require.Equal(t, "▲ 0.00 (0.00%)", line.Text)
	require.Equal(t, colorUp, line.Color)
}

func TestBuildQuote_ZeroPrevClose(t *testing.T) {
	q := aapl()
	q.PrevClose = 0
	line := priceLine(t, BuildQuote(q))
	require.Equal(t, "▲ 150.00 (0.00%)", line.Text)
}

func TestBuildQuote_RangeAndPlaceholders(t *testing.T) {
	q := aapl()
	q.High, q.Low = 151, 147.5
	q.MarketStatus = ""
	q.FetchedAt = time.Time{}

	msg := BuildQuote(q)
	all := texts(msg.Contents)
	require.Contains(t, all, "High")
	require.Contains(t, all, "151.00")
	require.Contains(t, all, "147.50")
	require.Contains(t, all, domain.MarketUnknown)
	require.Contains(t, all, "Updated -")

	header := msg.Contents.Body.Contents[0]
	require.Equal(t, colorMuted, header.Contents[1].Color)
}

func TestBuildQuote_JSONShape(t *testing.T) {
	raw, err := json.Marshal(BuildQuote(aapl()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "flex", decoded["type"])
	require.Equal(t, "AAPL 150.00", decoded["altText"])
	contents := decoded["contents"].(map[string]any)
	require.Equal(t, "bubble", contents["type"])
	require.Equal(t, "mega", contents["size"])
	body := contents["body"].(map[string]any)
	require.Equal(t, "vertical", body["layout"])
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "64000.50", FormatPrice(64000.5))
	require.Equal(t, "0.000012", FormatPrice(0.000012))
	require.Equal(t, "0.00", FormatPrice(0))
}
