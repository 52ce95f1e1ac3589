package dto

// ── 量化模块 DTO ──

// QuantifyRequest 提交量化判定请求。
// score / dismissed / duplicate_praise_id 三者互斥，最多给出一个
type QuantifyRequest struct {
	Score             *int    `json:"score"`
	Dismissed         *bool   `json:"dismissed"`
	DuplicatePraiseID *string `json:"duplicate_praise_id" binding:"omitempty,uuid"`
}

// QuantificationResponse 量化记录响应（score 为 null 表示尚未评分）
type QuantificationResponse struct {
	ID                string  `json:"id"`
	PraiseID          string  `json:"praise_id"`
	QuantifierID      string  `json:"quantifier_id"`
	Score             *int    `json:"score,omitempty"`
	Dismissed         bool    `json:"dismissed"`
	DuplicatePraiseID *string `json:"duplicate_praise_id,omitempty"`
	Finished          bool    `json:"finished"`
	UpdatedAt         string  `json:"updated_at"`
}

// QuantifyResponse 量化判定响应，affected 为结算分值发生变化的赞扬
type QuantifyResponse struct {
	Quantification QuantificationResponse `json:"quantification"`
	Affected       []PraiseResponse       `json:"affected"`
}

// QuantifierTaskResponse 量化员任务列表项
type QuantifierTaskResponse struct {
	Quantification QuantificationResponse `json:"quantification"`
	Praise         PraiseResponse         `json:"praise"`
}
