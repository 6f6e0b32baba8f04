package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"s7150duo/pkg/protocol"
)

// Publisher 把采样实时发布到Redis，供其他进程订阅。
// 发布失败只记录日志，不影响采集。
type Publisher struct {
	client  *redis.Client
	channel string
	listKey string
	log     *logrus.Logger
}

// NewPublisher 连接Redis并返回发布器
func NewPublisher(addr, password, channel string, db, poolSize int, datafile string, log *logrus.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	log.Info("Redis连接成功")

	name := strings.TrimSuffix(filepath.Base(datafile), filepath.Ext(datafile))
	return &Publisher{
		client:  client,
		channel: channel,
		listKey: fmt.Sprintf("dmm:%s:samples", name),
		log:     log,
	}, nil
}

// Publish 发布一条采样
func (p *Publisher) Publish(ctx context.Context, s *protocol.Sample) error {
	jsonData, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("序列化采样失败: %w", err)
	}

	// 发布到Redis Pub/Sub
	if err := p.client.Publish(ctx, p.channel, jsonData).Err(); err != nil {
		return fmt.Errorf("发布采样失败: %w", err)
	}

	// 同时保存到List（保留最近1000条）
	if err := p.client.LPush(ctx, p.listKey, jsonData).Err(); err != nil {
		p.log.Warnf("保存到List失败: %v", err)
	}
	p.client.LTrim(ctx, p.listKey, 0, 999)

	return nil
}

// Close 关闭Redis连接
func (p *Publisher) Close() error {
	return p.client.Close()
}
