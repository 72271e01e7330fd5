package confidence

type Tier string

const (
	High   Tier = "high"
	Medium Tier = "medium"
	Low    Tier = "low"
)

// Thresholds are lower bounds, inclusive.
type Thresholds struct {
	High   float64 `mapstructure:"high" validate:"gt=0,lte=1,gtfield=Medium"`
	Medium float64 `mapstructure:"medium" validate:"gte=0,lt=1"`
}

func Default() Thresholds {
	return Thresholds{High: 0.80, Medium: 0.50}
}

func (t Thresholds) Classify(c float64) Tier {
	switch {
	case c >= t.High:
		return High
	case c >= t.Medium:
		return Medium
	default:
		return Low
	}
}

// CSSClass is the style hook used by the result page.
func (t Tier) CSSClass() string {
	return "confidence-" + string(t)
}

func (t Tier) Message() string {
	switch t {
	case High:
		return "✅ 高信心度預測！結果可靠。"
	case Medium:
		return "⚠️ 中等信心度，建議參考其他照片確認。"
	default:
		return "❌ 低信心度，可能不是訓練過的鳥類或照片品質不佳。"
	}
}
