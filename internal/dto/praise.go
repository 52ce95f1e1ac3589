package dto

// ── 赞扬模块 DTO ──

// CreatePraiseRequest 创建赞扬请求
type CreatePraiseRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required,uuid"`
	Reason     string `json:"reason"      binding:"required,min=2,max=500"`
	SourceID   string `json:"source_id"   binding:"omitempty,max=100"`
}

// ListPraiseRequest 赞扬列表查询参数
type ListPraiseRequest struct {
	PaginationRequest
	ReceiverID string `form:"receiver_id" binding:"omitempty,uuid"`
}

// PraiseResponse 赞扬信息响应
type PraiseResponse struct {
	ID            string        `json:"id"`
	Giver         *UserResponse `json:"giver,omitempty"`
	Receiver      *UserResponse `json:"receiver,omitempty"`
	Reason        string        `json:"reason"`
	SourceID      string        `json:"source_id,omitempty"`
	ScoreRealized float64       `json:"score_realized"`
	CreatedAt     string        `json:"created_at"`
}

// PraiseDetailResponse 赞扬详情（含量化记录）
type PraiseDetailResponse struct {
	PraiseResponse
	Quantifications []QuantificationResponse `json:"quantifications"`
}

// ReceiverScoreResponse 接收者周期得分汇总
type ReceiverScoreResponse struct {
	ReceiverID   string  `json:"receiver_id"`
	ReceiverName string  `json:"receiver_name"`
	PraiseCount  int     `json:"praise_count"`
	TotalScore   float64 `json:"total_score"`
}
