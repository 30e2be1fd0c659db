package tencent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reckless-huang/dfirewall/pkg/types"
)

func TestRuleHasher(t *testing.T) {
	h := &RuleHasher{}
	a := types.FirewallRule{Protocol: "tcp", Port: "22", CidrBlock: "1.2.3.4", Action: "accept", FirewallRuleDescription: "home-ssh"}
	b := types.FirewallRule{Protocol: "TCP", Port: "22", CidrBlock: "1.2.3.4", Action: "ACCEPT", FirewallRuleDescription: "home-ssh"}

	assert.Len(t, h.GenerateRuleHash(a), 12)
	assert.Equal(t, h.GenerateRuleHash(a), h.GenerateRuleHash(b))
	assert.True(t, h.IsRuleEqual(a, b))

	b.CidrBlock = "5.6.7.8"
	assert.NotEqual(t, h.GenerateRuleHash(a), h.GenerateRuleHash(b))
	assert.False(t, h.IsRuleEqual(a, b))
}

func TestRuleHasher_PortAll(t *testing.T) {
	h := &RuleHasher{}
	a := types.FirewallRule{Protocol: "ICMP", Port: "ALL", Action: "ACCEPT"}
	b := types.FirewallRule{Protocol: "ICMP", Action: "ACCEPT"}
	assert.True(t, h.IsRuleEqual(a, b))
}
