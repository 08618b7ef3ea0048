package rules

import "fmt"

// ValidationError 输入字段校验失败，Field 指向第一个不合法的字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateRuleError 规则四元组唯一性冲突
type DuplicateRuleError struct {
	ChannelID int64
	DataType  string
	PointID   int64
	RuleName  string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule (channel_id=%d, data_type=%s, point_id=%d, rule_name=%s)",
		e.ChannelID, e.DataType, e.PointID, e.RuleName)
}
