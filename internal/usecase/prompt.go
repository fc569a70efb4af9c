package usecase

import (
	"fmt"
	"strings"

	"market-bot/internal/analysis"
	"market-bot/internal/card"
	"market-bot/internal/domain"
)

const (
	// FallbackText is sent when the language model cannot answer.
	FallbackText = "📌 ผมไม่สามารถประมวลผลคำตอบได้ในขณะนี้ครับ"
	// RefusalText is sent for input the moderation endpoint flags.
	RefusalText = "📌 ขออภัยครับ ผมไม่สามารถตอบคำถามนี้ได้ครับ"
)

func systemPrompt() string {
	return strings.Join([]string{
		"คุณคือ AI นักวิเคราะห์ตลาดของเพจ Signal Zeeker",
		"คุณเป็นผู้ชาย ใช้คำว่า \"ผม\" และลงท้ายทุกข้อความด้วย \"ครับ\"",
		"ตอบแบบ dynamic ไม่ fix เน้นให้เหมือนคนฉลาดจริง ๆ",
		"ถ้าไม่มีข้อมูลจริงให้บอกตรง ๆ ห้ามเดาตัวเลขราคา",
		"แบ่งย่อหน้าด้วยบรรทัดว่าง และขึ้นต้นหัวข้อสรุปด้วย 📌",
	}, "\n")
}

// apologyText is the reply when a quote cannot be fetched.
func apologyText(symbol string) string {
	return fmt.Sprintf("📌 ผมไม่สามารถดึงข้อมูล %s ได้ในขณะนี้ครับ โปรดตรวจสอบ symbol แล้วลองใหม่อีกครั้งครับ", symbol)
}

func buildMessages(prompt, hint string) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: "system", Content: systemPrompt()}}
	if hint = strings.TrimSpace(hint); hint != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: hint})
	}
	return append(messages, domain.ChatMessage{Role: "user", Content: strings.TrimSpace(prompt)})
}

// followUpHint summarizes the asset the user is asking about. quote and snap
// may be nil when the data could not be fetched.
func followUpHint(conv domain.ConversationContext, quote *domain.Quote, snap *analysis.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "บริบท: ผู้ใช้กำลังถามต่อเกี่ยวกับ %s (%s)", conv.Symbol, conv.AssetClass)

	if quote != nil {
		change, pct := quote.Change()
		fmt.Fprintf(&b, "\nราคาล่าสุด %s เปลี่ยนแปลง %s%s (%+.2f%%) สถานะตลาด %s",
			card.FormatPrice(quote.Current), sign(change), card.FormatPrice(abs(change)), pct, quote.MarketStatus)
		if quote.HasRange() {
			fmt.Fprintf(&b, "\nช่วงราคาวันนี้ %s - %s", card.FormatPrice(quote.Low), card.FormatPrice(quote.High))
		}
	}

	if snap != nil && snap.Bars > 0 {
		parts := make([]string, 0, 6)
		add := func(label string, v *float64) {
			if v != nil {
				parts = append(parts, label+" "+card.FormatPrice(*v))
			}
		}
		add("EMA20", snap.EMA20)
		add("EMA50", snap.EMA50)
		if snap.RSI14 != nil {
			parts = append(parts, fmt.Sprintf("RSI14 %.1f", *snap.RSI14))
		}
		add("VWAP", snap.VWAP)
		add("แนวรับ", snap.Support)
		add("แนวต้าน", snap.Resistance)
		if len(parts) > 0 {
			fmt.Fprintf(&b, "\nอินดิเคเตอร์จาก %d แท่งล่าสุด: %s", snap.Bars, strings.Join(parts, ", "))
		}
	}

	if quote == nil && (snap == nil || snap.Bars == 0) {
		b.WriteString("\nไม่มีข้อมูลราคาล่าสุด ให้บอกผู้ใช้ตรง ๆ ว่าไม่มีตัวเลขจริง")
	} else {
		b.WriteString("\nใช้ตัวเลขเหล่านี้เท่านั้น ห้ามแต่งตัวเลขเพิ่ม")
	}
	return b.String()
}

func sign(v float64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
