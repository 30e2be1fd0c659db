package tencent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/reckless-huang/dfirewall/pkg/types"
)

// RuleHasher 实现规则哈希生成器
type RuleHasher struct{}

var _ types.RuleHasher = &RuleHasher{}

// 轻量防火墙协议大小写不敏感，端口 ALL 与空值等价
func normalize(rule types.FirewallRule) types.FirewallRule {
	rule.Protocol = strings.ToUpper(rule.Protocol)
	rule.Action = strings.ToUpper(rule.Action)
	if strings.EqualFold(rule.Port, "ALL") {
		rule.Port = ""
	}
	return rule
}

// GenerateRuleHash 根据规则生成哈希值，取前 12 位作为展示用规则 ID
func (h *RuleHasher) GenerateRuleHash(rule types.FirewallRule) string {
	r := normalize(rule)
	key := fmt.Sprintf("%s:%s:%s:%s:%s",
		r.Protocol,
		r.Port,
		r.CidrBlock,
		r.Action,
		r.FirewallRuleDescription,
	)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])[:12]
}

// IsRuleEqual 比较两条规则是否相同
func (h *RuleHasher) IsRuleEqual(rule1, rule2 types.FirewallRule) bool {
	r1, r2 := normalize(rule1), normalize(rule2)
	return r1.Protocol == r2.Protocol &&
		r1.Port == r2.Port &&
		r1.CidrBlock == r2.CidrBlock &&
		r1.Action == r2.Action &&
		r1.FirewallRuleDescription == r2.FirewallRuleDescription
}
