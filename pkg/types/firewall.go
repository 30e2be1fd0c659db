package types

import "time"

// RuleHasher 定义了防火墙规则哈希生成的接口
type RuleHasher interface {
	// GenerateRuleHash 根据规则生成哈希值
	GenerateRuleHash(rule FirewallRule) string
	// IsRuleEqual 比较两条规则是否相同
	IsRuleEqual(rule1, rule2 FirewallRule) bool
}

// Credentials 云 API 长期凭证，只保存在内存中
type Credentials struct {
	SecretID  string
	SecretKey string
}

// SigningContext 单次请求的签名上下文
type SigningContext struct {
	Host        string
	ContentType string
	Payload     string
	Timestamp   int64
	Date        string // UTC, YYYY-MM-DD
	Service     string
	Credentials Credentials
}

// NewSigningContext 用同一时刻生成时间戳和日期，避免两者不一致导致签名失败
func NewSigningContext(host, contentType, payload, service string, cred Credentials, t time.Time) SigningContext {
	t = t.UTC()
	return SigningContext{
		Host:        host,
		ContentType: contentType,
		Payload:     payload,
		Timestamp:   t.Unix(),
		Date:        t.Format("2006-01-02"),
		Service:     service,
		Credentials: cred,
	}
}

// FirewallConfig 定义云服务商配置
type FirewallConfig struct {
	Provider   string            `json:"provider"`    // 云服务商标识：tencent
	Region     string            `json:"region"`      // 区域
	Endpoint   string            `json:"endpoint"`    // 可选，覆盖默认 API 地址
	InstanceID string            `json:"instance_id"` // 轻量应用服务器实例
	Credential map[string]string `json:"credential"`  // 认证信息
}
