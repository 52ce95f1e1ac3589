package dto

// ── 周期模块 DTO ──

// CreatePeriodRequest 创建周期请求
type CreatePeriodRequest struct {
	Name    string `json:"name"     binding:"required,min=2,max=100"`
	EndDate string `json:"end_date" binding:"required"` // "2026-09-30T23:59:59Z"
}

// UpdatePeriodRequest 更新周期请求（仅 OPEN 状态允许改结束时间）
type UpdatePeriodRequest struct {
	Name    *string `json:"name"     binding:"omitempty,min=2,max=100"`
	EndDate *string `json:"end_date"`
}

// PeriodResponse 周期信息响应
type PeriodResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	EndDate     string                  `json:"end_date"`
	Status      string                  `json:"status"`
	Settings    *PeriodSettingsResponse `json:"settings,omitempty"`
	PraiseCount int64                   `json:"praise_count"`
	CreatedAt   string                  `json:"created_at"`
	UpdatedAt   string                  `json:"updated_at"`
}

// PeriodDetailResponse 周期详情（含量化进度）
type PeriodDetailResponse struct {
	PeriodResponse
	QuantificationTotal    int64 `json:"quantification_total"`
	QuantificationFinished int64 `json:"quantification_finished"`
}

// StartQuantificationResponse 开始量化响应
type StartQuantificationResponse struct {
	Period      PeriodResponse `json:"period"`
	PraiseCount int            `json:"praise_count"`
	Assignments int            `json:"assignments"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// VerifyPoolResponse 量化员池校验响应
type VerifyPoolResponse struct {
	Sufficient    bool     `json:"sufficient"`
	PoolSize      int      `json:"pool_size"`
	Required      int      `json:"required"`
	PraiseCount   int      `json:"praise_count"`
	Warnings      []string `json:"warnings,omitempty"`
	QuantifierIDs []string `json:"quantifier_ids"`
}

// ReplaceQuantifierRequest 替换量化员请求。
// new_quantifier_id 为可选的首选接替人；缺省或对某条赞扬不合格时，
// 由指派算法在剩余池中按负载选择接替人
type ReplaceQuantifierRequest struct {
	CurrentQuantifierID string `json:"current_quantifier_id" binding:"required,uuid"`
	NewQuantifierID     string `json:"new_quantifier_id"     binding:"omitempty,uuid"`
}

// ReplaceQuantifierResponse 替换量化员响应
type ReplaceQuantifierResponse struct {
	Reassigned int      `json:"reassigned"`
	Discarded  int      `json:"discarded"` // 被丢弃的已完成量化记录数
	Warnings   []string `json:"warnings,omitempty"`
}
