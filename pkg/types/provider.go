package types

import "context"

// DeleteOutcome 删除规则的结果
type DeleteOutcome int

const (
	DeleteOutcomeSkipped       DeleteOutcome = iota // 没有匹配规则，未发起删除
	DeleteOutcomeDeleted                            // 删除成功
	DeleteOutcomeAlreadyAbsent                      // 云端报告规则已不存在
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeleteOutcomeDeleted:
		return "deleted"
	case DeleteOutcomeAlreadyAbsent:
		return "already-absent"
	default:
		return "skipped"
	}
}

// FirewallRuleProvider 定义防火墙规则的远端操作接口
type FirewallRuleProvider interface {
	// QueryAll 查询实例下全部防火墙规则
	QueryAll(ctx context.Context, instanceID string) ([]RemoteRule, error)

	// QueryByDescription 查询描述在 descriptions 中的规则，返回结果已去掉 AppType
	QueryByDescription(ctx context.Context, instanceID string, descriptions []string) ([]RemoteRule, error)

	// CreateRules 创建规则
	CreateRules(ctx context.Context, instanceID string, rules []FirewallRule) error

	// DeleteRules 删除规则，规则已不存在时返回 DeleteOutcomeAlreadyAbsent
	DeleteRules(ctx context.Context, instanceID string, rules []FirewallRule) (DeleteOutcome, error)
}

// IPTracker 定义公网 IP 获取与标记文件操作
type IPTracker interface {
	CurrentPublicIP(ctx context.Context) (string, error)
	HasChanged(candidateIP string) (bool, error)
	LastIP() (string, error)
	Persist(ip string) error
}
