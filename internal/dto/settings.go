package dto

// ── 设置模块 DTO ──

// UpdateGlobalSettingsRequest 更新全局设置请求
type UpdateGlobalSettingsRequest struct {
	QuantifiersPerPraise *int     `json:"quantifiers_per_praise" binding:"omitempty,min=1,max=20"`
	AssignEvenly         *bool    `json:"assign_evenly"`
	PraisePerQuantifier  *int     `json:"praise_per_quantifier"  binding:"omitempty,min=1,max=500"`
	DuplicateScorePct    *float64 `json:"duplicate_score_pct"    binding:"omitempty,gt=0,lte=1"`
	AllowedScores        []int    `json:"allowed_scores"         binding:"omitempty,min=1"`
}

// PeriodSettingsResponse 周期设置响应（快照或全局继承的生效值）
type PeriodSettingsResponse struct {
	QuantifiersPerPraise int     `json:"quantifiers_per_praise"`
	AssignEvenly         bool    `json:"assign_evenly"`
	PraisePerQuantifier  int     `json:"praise_per_quantifier"`
	DuplicateScorePct    float64 `json:"duplicate_score_pct"`
	AllowedScores        []int   `json:"allowed_scores"`
	Frozen               bool    `json:"frozen"` // true 表示已随量化开始冻结为快照
}

// ── 事件日志 DTO ──

// EventLogResponse 事件日志响应
type EventLogResponse struct {
	ID        string `json:"id"`
	PeriodID  string `json:"period_id"`
	Kind      string `json:"kind"`
	ActorID   string `json:"actor_id,omitempty"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}
