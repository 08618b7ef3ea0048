package database

import (
	"time"

	"alarmsrv/internal/models"

	"gorm.io/gorm"
)

// RuleStore alert_rule 表的持久化操作
//
// All constraint checks (unique tuple, enum CHECKs, NOT NULL) are left to
// the sqlite schema; callers receive the classified storage errors from
// errors.go. Losing writers on the same rule tuple get ErrDuplicate from
// the commit, no application-level locking is involved.
type RuleStore struct {
	db *gorm.DB
}

func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{db: db}
}

// Insert 写入新规则并回填自增 ID 和时间戳
//
// Every column is written as given, enabled=false and value=0 included;
// the model declares no column defaults that gorm could substitute.
func (s *RuleStore) Insert(rule *models.AlertRule) error {
	if err := s.db.Create(rule).Error; err != nil {
		return classifyError(err)
	}
	return nil
}

// Update 整体替换 id 对应规则的可变字段，刷新 updated_at
func (s *RuleStore) Update(id uint, rule *models.AlertRule) error {
	var existing models.AlertRule
	if err := s.db.First(&existing, id).Error; err != nil {
		return classifyError(err)
	}

	existing.ChannelID = rule.ChannelID
	existing.DataType = rule.DataType
	existing.PointID = rule.PointID
	existing.RuleName = rule.RuleName
	existing.WarningLevel = rule.WarningLevel
	existing.Operator = rule.Operator
	existing.Value = rule.Value
	existing.Enabled = rule.Enabled
	existing.Description = rule.Description

	if err := s.db.Save(&existing).Error; err != nil {
		return classifyError(err)
	}

	*rule = existing
	return nil
}

// SetEnabled 只切换启用状态，其余字段不变
func (s *RuleStore) SetEnabled(id uint, enabled bool) error {
	result := s.db.Model(&models.AlertRule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return classifyError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 物理删除，不可恢复
func (s *RuleStore) Delete(id uint) error {
	result := s.db.Delete(&models.AlertRule{}, id)
	if result.Error != nil {
		return classifyError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RuleStore) Get(id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := s.db.First(&rule, id).Error; err != nil {
		return nil, classifyError(err)
	}
	return &rule, nil
}

// ListFilter 列表查询的可选过滤条件
type ListFilter struct {
	ChannelID *int64
}

// List 按 ID 升序返回规则快照
func (s *RuleStore) List(filter ListFilter) ([]models.AlertRule, error) {
	query := s.db.Order("id ASC")
	if filter.ChannelID != nil {
		query = query.Where("channel_id = ?", *filter.ChannelID)
	}

	rules := []models.AlertRule{}
	if err := query.Find(&rules).Error; err != nil {
		return nil, classifyError(err)
	}
	return rules, nil
}

func (s *RuleStore) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&models.AlertRule{}).Count(&count).Error; err != nil {
		return 0, classifyError(err)
	}
	return count, nil
}

func (s *RuleStore) CountEnabled() (int64, error) {
	var count int64
	if err := s.db.Model(&models.AlertRule{}).Where("enabled = ?", true).Count(&count).Error; err != nil {
		return 0, classifyError(err)
	}
	return count, nil
}

// SearchFilter 高级搜索条件，零值字段不参与过滤
type SearchFilter struct {
	Keyword      string // 模糊匹配规则名称、描述、通道 ID、点位 ID
	WarningLevel *int
	Enabled      *bool
	StartTime    *time.Time
	EndTime      *time.Time
	Page         int
	PageSize     int
}

// Search 分页搜索，返回当前页数据和总命中数
func (s *RuleStore) Search(filter SearchFilter) ([]models.AlertRule, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}

	query := s.db.Model(&models.AlertRule{})

	if filter.Keyword != "" {
		pattern := "%" + filter.Keyword + "%"
		query = query.Where(
			"rule_name LIKE ? OR description LIKE ? OR CAST(channel_id AS TEXT) LIKE ? OR CAST(point_id AS TEXT) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if filter.WarningLevel != nil {
		query = query.Where("warning_level = ?", *filter.WarningLevel)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, classifyError(err)
	}

	rules := []models.AlertRule{}
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&rules).Error; err != nil {
		return nil, 0, classifyError(err)
	}

	return rules, total, nil
}
