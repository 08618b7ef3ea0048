package rules

import (
	"errors"

	"alarmsrv/internal/database"
	"alarmsrv/internal/logger"
	"alarmsrv/internal/models"

	"go.uber.org/zap"
)

// RuleInput 创建/更新规则的输入字段
type RuleInput struct {
	ChannelID    int64   `json:"channel_id"`
	DataType     string  `json:"data_type"`
	PointID      int64   `json:"point_id"`
	RuleName     string  `json:"rule_name"`
	WarningLevel int     `json:"warning_level"`
	Operator     string  `json:"operator"`
	Value        float64 `json:"value"`
	Enabled      bool    `json:"enabled"`
	Description  string  `json:"description"`
}

var validDataTypes = map[string]bool{
	models.DataTypeTelemetry:  true,
	models.DataTypeStatus:     true,
	models.DataTypeControl:    true,
	models.DataTypeAdjustment: true,
}

var validOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
}

// Service 规则服务：校验输入后委托给 RuleStore
type Service struct {
	store *database.RuleStore
}

func NewService(store *database.RuleStore) *Service {
	return &Service{store: store}
}

// validate 结构校验，顺序固定：存在性和枚举先于唯一性检查，
// 保证同一份非法输入总是报同一个字段。
func validate(input RuleInput) error {
	if input.ChannelID <= 0 {
		return &ValidationError{Field: "channel_id", Reason: "must be a positive integer"}
	}
	if !validDataTypes[input.DataType] {
		return &ValidationError{Field: "data_type", Reason: "must be one of T, S, C, A"}
	}
	if input.PointID <= 0 {
		return &ValidationError{Field: "point_id", Reason: "must be a positive integer"}
	}
	if input.RuleName == "" {
		return &ValidationError{Field: "rule_name", Reason: "must not be empty"}
	}
	if input.WarningLevel < models.WarningLevelLow || input.WarningLevel > models.WarningLevelHigh {
		return &ValidationError{Field: "warning_level", Reason: "must be 1, 2 or 3"}
	}
	if !validOperators[input.Operator] {
		return &ValidationError{Field: "operator", Reason: "must be one of >, <, >=, <=, ==, !="}
	}
	return nil
}

// translateDuplicate 将存储层唯一冲突翻译为携带四元组的领域错误
func translateDuplicate(err error, input RuleInput) error {
	if errors.Is(err, database.ErrDuplicate) {
		return &DuplicateRuleError{
			ChannelID: input.ChannelID,
			DataType:  input.DataType,
			PointID:   input.PointID,
			RuleName:  input.RuleName,
		}
	}
	return err
}

// Create 校验并持久化新规则
func (s *Service) Create(input RuleInput) (*models.AlertRule, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	rule := &models.AlertRule{
		ChannelID:    input.ChannelID,
		DataType:     input.DataType,
		PointID:      input.PointID,
		RuleName:     input.RuleName,
		WarningLevel: input.WarningLevel,
		Operator:     input.Operator,
		Value:        input.Value,
		Enabled:      input.Enabled,
		Description:  input.Description,
	}

	if err := s.store.Insert(rule); err != nil {
		return nil, translateDuplicate(err, input)
	}

	logger.Info("alert rule created",
		zap.Uint("rule_id", rule.ID),
		zap.String("rule_name", rule.RuleName),
		zap.Int64("channel_id", rule.ChannelID),
	)
	return rule, nil
}

// Update 校验后整体替换规则的可变字段
func (s *Service) Update(id uint, input RuleInput) (*models.AlertRule, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	rule := &models.AlertRule{
		ChannelID:    input.ChannelID,
		DataType:     input.DataType,
		PointID:      input.PointID,
		RuleName:     input.RuleName,
		WarningLevel: input.WarningLevel,
		Operator:     input.Operator,
		Value:        input.Value,
		Enabled:      input.Enabled,
		Description:  input.Description,
	}

	if err := s.store.Update(id, rule); err != nil {
		return nil, translateDuplicate(err, input)
	}

	logger.Info("alert rule updated", zap.Uint("rule_id", id))
	return rule, nil
}

// Enable 启用规则并返回最新状态
func (s *Service) Enable(id uint) (*models.AlertRule, error) {
	return s.setEnabled(id, true)
}

// Disable 禁用规则并返回最新状态
func (s *Service) Disable(id uint) (*models.AlertRule, error) {
	return s.setEnabled(id, false)
}

func (s *Service) setEnabled(id uint, enabled bool) (*models.AlertRule, error) {
	if err := s.store.SetEnabled(id, enabled); err != nil {
		return nil, err
	}
	logger.Info("alert rule toggled", zap.Uint("rule_id", id), zap.Bool("enabled", enabled))
	return s.store.Get(id)
}

func (s *Service) Get(id uint) (*models.AlertRule, error) {
	return s.store.Get(id)
}

func (s *Service) ListAll() ([]models.AlertRule, error) {
	return s.store.List(database.ListFilter{})
}

func (s *Service) ListByChannel(channelID int64) ([]models.AlertRule, error) {
	return s.store.List(database.ListFilter{ChannelID: &channelID})
}

func (s *Service) Delete(id uint) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	logger.Info("alert rule deleted", zap.Uint("rule_id", id))
	return nil
}

func (s *Service) Count() (int64, error) {
	return s.store.Count()
}

func (s *Service) CountEnabled() (int64, error) {
	return s.store.CountEnabled()
}

// Search 高级搜索，透传存储层分页结果
func (s *Service) Search(filter database.SearchFilter) ([]models.AlertRule, int64, error) {
	return s.store.Search(filter)
}
