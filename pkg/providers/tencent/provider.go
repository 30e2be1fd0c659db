package tencent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reckless-huang/dfirewall/pkg/types"
)

// describeLimit DescribeFirewallRules 单页上限
const describeLimit = 100

// Provider 实现腾讯云轻量应用服务器的防火墙规则操作
type Provider struct {
	client     *Client
	instanceID string
	RuleHasher
}

var _ types.FirewallRuleProvider = &Provider{}

// NewProvider 创建腾讯云 Provider 实例
func NewProvider(config types.FirewallConfig, opts ...Option) (*Provider, error) {
	// 只检查认证信息，实例 ID 可以在调用时传入
	cred := types.Credentials{
		SecretID:  config.Credential["secret_id"],
		SecretKey: config.Credential["secret_key"],
	}
	client, err := NewClient(config.Endpoint, config.Region, cred, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tencent client failed: %w", err)
	}

	return &Provider{
		client:     client,
		instanceID: config.InstanceID,
		RuleHasher: RuleHasher{},
	}, nil
}

// InstanceID 返回配置中的默认实例
func (p *Provider) InstanceID() string {
	return p.instanceID
}

type describeFirewallRulesRequest struct {
	InstanceID string `json:"InstanceId"`
	Offset     int    `json:"Offset"`
	Limit      int    `json:"Limit"`
}

type describeFirewallRulesResponse struct {
	baseResponse
	TotalCount      int                `json:"TotalCount"`
	FirewallRuleSet []types.RemoteRule `json:"FirewallRuleSet"`
}

type firewallRulesRequest struct {
	InstanceID    string               `json:"InstanceId"`
	FirewallRules []types.FirewallRule `json:"FirewallRules"`
}

// QueryAll 分页查询实例的全部防火墙规则
func (p *Provider) QueryAll(ctx context.Context, instanceID string) ([]types.RemoteRule, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("instance id is required: %w", types.ErrInvalidConfig)
	}

	var rules []types.RemoteRule
	for offset := 0; ; {
		request := describeFirewallRulesRequest{
			InstanceID: instanceID,
			Offset:     offset,
			Limit:      describeLimit,
		}
		var response describeFirewallRulesResponse
		if err := p.client.do(ctx, ActionDescribeFirewallRules, request, &response); err != nil {
			return nil, err
		}

		rules = append(rules, response.FirewallRuleSet...)
		slog.Debug("Described firewall rules",
			"instance_id", instanceID,
			"offset", offset,
			"page", len(response.FirewallRuleSet),
			"total", response.TotalCount,
		)

		if len(response.FirewallRuleSet) == 0 || len(rules) >= response.TotalCount {
			break
		}
		offset += len(response.FirewallRuleSet)
	}

	return rules, nil
}

// QueryByDescription 按描述精确匹配规则，并去掉 AppType
func (p *Provider) QueryByDescription(ctx context.Context, instanceID string, descriptions []string) ([]types.RemoteRule, error) {
	all, err := p.QueryAll(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(descriptions))
	for _, d := range descriptions {
		wanted[d] = struct{}{}
	}

	matched := make([]types.RemoteRule, 0)
	for _, r := range all {
		if r.FirewallRuleDescription == "" {
			continue
		}
		if _, ok := wanted[r.FirewallRuleDescription]; !ok {
			continue
		}
		matched = append(matched, types.RemoteRule{FirewallRule: r.Rule()})
	}
	return matched, nil
}

// CreateRules 创建防火墙规则，任何错误都直接返回
func (p *Provider) CreateRules(ctx context.Context, instanceID string, rules []types.FirewallRule) error {
	request := firewallRulesRequest{InstanceID: instanceID, FirewallRules: rules}

	slog.Debug("Creating firewall rules", "instance_id", instanceID, "count", len(rules))
	if err := p.client.do(ctx, ActionCreateFirewallRules, request, nil); err != nil {
		return err
	}
	return nil
}

// DeleteRules 删除防火墙规则，规则已不存在时视为成功
func (p *Provider) DeleteRules(ctx context.Context, instanceID string, rules []types.FirewallRule) (types.DeleteOutcome, error) {
	request := firewallRulesRequest{InstanceID: instanceID, FirewallRules: rules}

	slog.Debug("Deleting firewall rules", "instance_id", instanceID, "count", len(rules))
	err := p.client.do(ctx, ActionDeleteFirewallRules, request, nil)
	if err == nil {
		return types.DeleteOutcomeDeleted, nil
	}

	var pe *types.ProviderError
	if errors.As(err, &pe) && pe.IsRuleNotFound() {
		slog.Info("Firewall rules already absent", "instance_id", instanceID, "request_id", pe.RequestID)
		return types.DeleteOutcomeAlreadyAbsent, nil
	}
	return types.DeleteOutcomeSkipped, err
}
