package model

import "time"

// 周期状态机：open → quantify → closed，不可逆、不可跳状态。
// 状态字段只能由 PeriodService 的状态转移函数写入。
const (
	PeriodStatusOpen     = "open"
	PeriodStatusQuantify = "quantify"
	PeriodStatusClosed   = "closed"
)

// Period 周期表 — 对应 periods
// 周期的隐式开始时间为上一周期（按 end_date 排序）的结束时间；
// 首个周期从"时间起点"开始。end_date 为排他边界。
type Period struct {
	PeriodID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_id"`
	Name     string    `gorm:"type:varchar(100);not null"                     json:"name"`
	EndDate  time.Time `gorm:"not null"                                       json:"end_date"`
	Status   string    `gorm:"type:varchar(20);not null;default:'open'"       json:"status"` // open | quantify | closed
	VersionedModel

	// 关联
	Settings *PeriodSettings `gorm:"foreignKey:PeriodID;references:PeriodID" json:"settings,omitempty"`
}

// TableName 指定表名
func (Period) TableName() string { return "periods" }

// PeriodSettings 周期设置快照表 — 对应 period_settings
// 周期创建时从全局设置拷贝，仅在周期 open 状态下可修改。
type PeriodSettings struct {
	PeriodID             string   `gorm:"type:uuid;primaryKey" json:"period_id"`
	QuantifiersPerPraise int      `gorm:"not null"             json:"quantifiers_per_praise"`
	AssignEvenly         bool     `gorm:"not null"             json:"assign_evenly"`
	PraisePerQuantifier  int      `gorm:"not null"             json:"praise_per_quantifier"`
	DuplicateScorePct    float64  `gorm:"not null"             json:"duplicate_score_pct"`
	AllowedScores        IntArray `gorm:"type:int[];not null"  json:"allowed_scores"`
	BaseModel
}

// TableName 指定表名
func (PeriodSettings) TableName() string { return "period_settings" }

// GlobalSettings 全局量化设置表 — 对应 global_settings（单行强类型）
type GlobalSettings struct {
	Singleton            bool     `gorm:"primaryKey;default:true" json:"-"`
	QuantifiersPerPraise int      `gorm:"not null;default:3"      json:"quantifiers_per_praise"`
	AssignEvenly         bool     `gorm:"not null;default:true"   json:"assign_evenly"`
	PraisePerQuantifier  int      `gorm:"not null;default:50"     json:"praise_per_quantifier"`
	DuplicateScorePct    float64  `gorm:"not null;default:0.1"    json:"duplicate_score_pct"`
	AllowedScores        IntArray `gorm:"type:int[];not null"     json:"allowed_scores"`
	BaseModel
}

// TableName 指定表名
func (GlobalSettings) TableName() string { return "global_settings" }
