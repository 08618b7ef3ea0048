package models

import "time"

// 点位数据类型
const (
	DataTypeTelemetry  = "T" // 遥测
	DataTypeStatus     = "S" // 遥信
	DataTypeControl    = "C" // 遥控
	DataTypeAdjustment = "A" // 遥调
)

// 告警级别
const (
	WarningLevelLow    = 1
	WarningLevelMedium = 2
	WarningLevelHigh   = 3
)

// AlertRule 告警规则模型
//
// (channel_id, data_type, point_id, rule_name) is enforced unique by
// idx_alert_rule_tuple. Enum columns carry CHECK constraints so that
// invalid values are rejected even if a write bypasses the rule service.
//
// Enabled carries no column default: gorm substitutes the default for a
// zero-valued field on create, which would turn enabled=false into true.
// Requests that omit enabled are defaulted to true at the API layer.
type AlertRule struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ChannelID    int64     `gorm:"not null;index:idx_alert_rule_channel;uniqueIndex:idx_alert_rule_tuple" json:"channel_id"`
	DataType     string    `gorm:"size:1;not null;uniqueIndex:idx_alert_rule_tuple;check:chk_alert_rule_data_type,data_type IN ('T','S','C','A')" json:"data_type"`
	PointID      int64     `gorm:"not null;uniqueIndex:idx_alert_rule_tuple" json:"point_id"`
	RuleName     string    `gorm:"size:255;not null;uniqueIndex:idx_alert_rule_tuple" json:"rule_name"`
	WarningLevel int       `gorm:"not null;check:chk_alert_rule_warning_level,warning_level IN (1,2,3)" json:"warning_level"`
	Operator     string    `gorm:"size:2;not null;check:chk_alert_rule_operator,operator IN ('>','<','>=','<=','==','!=')" json:"operator"`
	Value        float64   `gorm:"not null" json:"value"`
	Enabled      bool      `gorm:"not null;index:idx_alert_rule_enabled" json:"enabled"`
	Description  string    `gorm:"type:text;not null;default:''" json:"description"`
	CreatedAt    time.Time `gorm:"index:idx_alert_rule_created_at" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (AlertRule) TableName() string {
	return "alert_rule"
}
