package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FirewallRule 表示一条轻量应用服务器防火墙规则
type FirewallRule struct {
	Protocol                string `json:"Protocol,omitempty"`
	Port                    string `json:"Port,omitempty"`
	CidrBlock               string `json:"CidrBlock,omitempty"`
	Action                  string `json:"Action,omitempty"`
	FirewallRuleDescription string `json:"FirewallRuleDescription,omitempty"`
}

// RemoteRule 表示云端返回的规则，带有 AppType 字段
type RemoteRule struct {
	AppType string `json:"AppType,omitempty"`
	FirewallRule
}

// Rule 去掉 AppType，用于回放到创建/删除请求
func (r RemoteRule) Rule() FirewallRule {
	return r.FirewallRule
}

// FirewallRuleTemplate 本地声明的期望规则
type FirewallRuleTemplate struct {
	InstanceID string         `json:"InstanceId,omitempty"`
	Rules      []FirewallRule `json:"FirewallRules"`
}

// Clone 深拷贝模板
func (t FirewallRuleTemplate) Clone() FirewallRuleTemplate {
	rules := make([]FirewallRule, len(t.Rules))
	copy(rules, t.Rules)
	return FirewallRuleTemplate{InstanceID: t.InstanceID, Rules: rules}
}

// WithCidr 返回所有规则 CidrBlock 替换为 ip 的副本，原模板不变
func (t FirewallRuleTemplate) WithCidr(ip string) FirewallRuleTemplate {
	c := t.Clone()
	for i := range c.Rules {
		c.Rules[i].CidrBlock = ip
	}
	return c
}

// Descriptions 返回模板中去重后的非空描述，保持原有顺序
func (t FirewallRuleTemplate) Descriptions() []string {
	seen := make(map[string]struct{}, len(t.Rules))
	descs := make([]string, 0, len(t.Rules))
	for _, r := range t.Rules {
		d := r.FirewallRuleDescription
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		descs = append(descs, d)
	}
	return descs
}

// LoadTemplate 解析规则模板，支持规则数组或 {"InstanceId","FirewallRules"} 对象两种格式
func LoadTemplate(r io.Reader) (FirewallRuleTemplate, error) {
	var tpl FirewallRuleTemplate

	data, err := io.ReadAll(r)
	if err != nil {
		return tpl, fmt.Errorf("read template failed: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return tpl, ErrEmptyTemplate
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, &tpl.Rules); err != nil {
			return tpl, fmt.Errorf("parse template failed: %w", err)
		}
	} else if err := json.Unmarshal(data, &tpl); err != nil {
		return tpl, fmt.Errorf("parse template failed: %w", err)
	}

	if len(tpl.Rules) == 0 {
		return tpl, ErrEmptyTemplate
	}
	return tpl, nil
}

// LoadTemplateFile 从文件读取规则模板
func LoadTemplateFile(path string) (FirewallRuleTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return FirewallRuleTemplate{}, fmt.Errorf("open template failed: %w", err)
	}
	defer f.Close()
	return LoadTemplate(f)
}
