package model

import "time"

// PraiseItem 赞扬表 — 对应 praise_items
// 归属周期由 created_at 落入哪个周期窗口推导，不持久化外键。
// score_realized 是 ScoreService 维护的派生缓存，其他组件只读。
type PraiseItem struct {
	PraiseID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"praise_id"`
	GiverID       string    `gorm:"type:uuid;not null"                             json:"giver_id"`
	ReceiverID    string    `gorm:"type:uuid;not null"                             json:"receiver_id"`
	Reason        string    `gorm:"type:varchar(1000);not null"                    json:"reason"`
	SourceID      string    `gorm:"type:varchar(255);not null;default:''"          json:"source_id"`
	ScoreRealized float64   `gorm:"not null;default:0"                             json:"score_realized"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	CreatedBy     *string   `gorm:"type:uuid"                                      json:"created_by,omitempty"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
	UpdatedBy     *string   `gorm:"type:uuid"                                      json:"updated_by,omitempty"`

	// 关联
	Giver           *User            `gorm:"foreignKey:GiverID;references:UserID"    json:"giver,omitempty"`
	Receiver        *User            `gorm:"foreignKey:ReceiverID;references:UserID" json:"receiver,omitempty"`
	Quantifications []Quantification `gorm:"foreignKey:PraiseID"                     json:"quantifications,omitempty"`
}

// TableName 指定表名
func (PraiseItem) TableName() string { return "praise_items" }

// Quantification 量化记录表 — 对应 quantifications
// (praise_id, quantifier_id) 唯一。互斥不变式：score 非空、dismissed、
// duplicate_praise_id 三者同一时刻至多一个生效，写入其一即清空其余。
// score 为 NULL 表示尚未评分，0 是合法的已评分值。
type Quantification struct {
	QuantificationID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"quantification_id"`
	PraiseID          string  `gorm:"type:uuid;not null;index"                       json:"praise_id"`
	QuantifierID      string  `gorm:"type:uuid;not null;index"                       json:"quantifier_id"`
	Score             *int    `gorm:"type:int"                                       json:"score,omitempty"`
	Dismissed         bool    `gorm:"not null;default:false"                         json:"dismissed"`
	DuplicatePraiseID *string `gorm:"type:uuid;index"                                json:"duplicate_praise_id,omitempty"`
	VersionedModel

	// 关联
	Quantifier *User `gorm:"foreignKey:QuantifierID;references:UserID" json:"quantifier,omitempty"`
}

// TableName 指定表名
func (Quantification) TableName() string { return "quantifications" }

// Finished 判断量化员是否已对该记录作出判断（评分、驳回或标记重复）
func (q *Quantification) Finished() bool {
	return q.Score != nil || q.Dismissed || q.DuplicatePraiseID != nil
}

// EventLog 审计事件表 — 对应 event_logs（纯审计日志）
type EventLog struct {
	EventID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	Kind      string    `gorm:"type:varchar(50);not null"                      json:"kind"`
	Message   string    `gorm:"type:varchar(500);not null"                     json:"message"`
	PeriodID  *string   `gorm:"type:uuid;index"                                json:"period_id,omitempty"`
	PraiseID  *string   `gorm:"type:uuid"                                      json:"praise_id,omitempty"`
	ActorID   *string   `gorm:"type:uuid"                                      json:"actor_id,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (EventLog) TableName() string { return "event_logs" }

// 审计事件类型
const (
	EventKindPeriodCreated       = "period.created"
	EventKindPeriodUpdated       = "period.updated"
	EventKindQuantifyStarted     = "period.quantify_started"
	EventKindPeriodClosed        = "period.closed"
	EventKindQuantifierReplaced  = "period.quantifier_replaced"
	EventKindPraiseQuantified    = "praise.quantified"
	EventKindFirstQuantification = "praise.first_quantification"
	EventKindQuantifyComplete    = "praise.quantification_complete"
)
