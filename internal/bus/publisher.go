package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alarmsrv/internal/config"

	"github.com/redis/go-redis/v9"
)

// 规则变更动作
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionEnabled  = "enabled"
	ActionDisabled = "disabled"
)

// RuleEvent 发布到消息总线的规则变更通知，
// 下游服务（如 comsrv 的规则缓存）据此刷新本地规则。
type RuleEvent struct {
	Action    string `json:"action"`
	RuleID    uint   `json:"rule_id"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher 通过 Redis pub/sub 广播规则变更
type Publisher struct {
	client  *redis.Client
	channel string
}

// Connect 建立 Redis 连接并验证可达性
func Connect(cfg config.RedisConfig) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Publisher{
		client:  client,
		channel: cfg.Prefix + "rule-events",
	}, nil
}

// Publish 广播一次规则变更，不关心订阅者数量
func (p *Publisher) Publish(ctx context.Context, action string, ruleID uint) error {
	event := RuleEvent{
		Action:    action,
		RuleID:    ruleID,
		Timestamp: time.Now().Unix(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal rule event: %w", err)
	}

	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Channel 返回事件频道名
func (p *Publisher) Channel() string {
	return p.channel
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
