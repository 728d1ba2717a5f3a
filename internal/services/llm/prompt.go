package llm

import "google.golang.org/genai"

// analysisSystemPrompt fixes the output contract for the analysis
// completion. The schema is restated inline so providers without structured
// output still return parseable JSON.
const analysisSystemPrompt = `你是一位資深股票研究分析師。根據使用者提供的 JSON 資料(包含財報摘要、價格、分析師訊號、機構動向、新聞情緒、動能指標與總體經濟背景),產出一份投資建議。

嚴格只輸出一個 JSON 物件,不要加任何說明文字或 markdown 標記,格式如下:
{
  "action": {
    "rating": "BUY | HOLD | SELL",
    "target_price": 數字(目標價,與現價同幣別),
    "confidence": "high | medium | low",
    "rationale": "繁體中文,150 字以內的核心理由"
  },
  "segment": "公司主要業務分類(簡短)",
  "quality_score": 0 到 100 的數字,
  "thesis": "繁體中文投資論點,300 字以內",
  "risks": ["主要風險1", "主要風險2"],
  "catalysts": ["潛在催化劑1", "潛在催化劑2"]
}

規則:
- rating 必須是 BUY、HOLD、SELL 三者之一,不可為 N/A。
- target_price 必須是合理數字;若資料不足以估價,給出接近現價的保守值並降低 confidence。
- 所有文字欄位使用繁體中文。`

// repairSystemPrompt drives the strict-JSON repair pass on the secondary
// model: the broken text goes in, a valid object comes out.
const repairSystemPrompt = `你是一個 JSON 修復工具。使用者會提供一段幾乎是 JSON 但格式損壞的文字。請輸出修復後的合法 JSON 物件,保留原有欄位與數值,不要新增內容,不要輸出任何 JSON 以外的文字。`

const mdaSummaryPrompt = `你是一位財報分析師。請將以下 SEC 申報文件的「管理層討論與分析」(MD&A) 內容濃縮成繁體中文摘要,400 字以內,聚焦:營收與獲利趨勢、利潤率變化、管理層對前景的說法、主要風險。只輸出摘要文字。`

const transcriptSummaryPrompt = `你是一位財報電話會議分析師。請將以下法說會逐字稿整理成 JSON:{"summary": "繁體中文摘要,300 字以內", "bullets": ["重點1", "重點2", "重點3"]}。聚焦管理層指引、需求展望與利潤率。只輸出 JSON。`

const newsKeywordsPrompt = `你是一位財經新聞編輯。針對股票代號 %s,輸出 JSON:{"keywords": ["關鍵字1", ...]},5 個以內適合搜尋近期相關新聞的英文關鍵字(含代號本身)。只輸出 JSON。`

const newsSentimentPrompt = `你是一位財經新聞分析師。根據以下新聞標題與摘要,判斷對該股票的整體情緒。輸出 JSON:{"sentiment_label": "樂觀 | 中性 | 悲觀", "summary": "繁體中文,100 字以內", "supporting_events": ["支持此判斷的事件1", "事件2"]}。只輸出 JSON。`

// analysisSchema is the strict response schema handed to Gemini for the
// repair pass and for structured-output analysis runs.
var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"rating":       {Type: genai.TypeString},
				"target_price": {Type: genai.TypeNumber},
				"confidence":   {Type: genai.TypeString},
				"rationale":    {Type: genai.TypeString},
			},
			Required: []string{"rating"},
		},
		"segment":       {Type: genai.TypeString},
		"quality_score": {Type: genai.TypeNumber},
		"thesis":        {Type: genai.TypeString},
		"risks":         {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"catalysts":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"action"},
}

var transcriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {Type: genai.TypeString},
		"bullets": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"summary"},
}

var keywordsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"keywords": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"keywords"},
}

var sentimentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sentiment_label":   {Type: genai.TypeString},
		"summary":           {Type: genai.TypeString},
		"supporting_events": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"sentiment_label"},
}
