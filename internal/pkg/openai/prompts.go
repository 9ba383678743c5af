package openai

const (
	systemPrompt = `你的任務是根據台灣公開資訊觀測站的財務報表資料，
		評估該公司的財務體質。
		只使用提供的數字，不要臆測缺少的資料。
		輸出必須是一個有效的 JSON，不要加任何說明文字。`

	assessmentSchema = `
		JSON 欄位:
		summary: string (繁體中文，三句以內),
		strengths: []string,
		risks: []string,
		score{direction: string ("up"|"down"|"flat"),
			magnitude: float64 (0-100),
			confidence: float64 (0.0-1.0),
			rationale_short: string}.
		格式:
		- 金額以報表原幣別與單位為準。
		- 百分比最多四位小數。`
)
