package providers

import (
	"fmt"
	"strings"

	"github.com/reckless-huang/dfirewall/pkg/providers/tencent"
	"github.com/reckless-huang/dfirewall/pkg/types"
)

const (
	TENCENT    = "tencent"
	LIGHTHOUSE = "lighthouse"
)

// NewProvider 根据配置创建对应的云服务商实现
func NewProvider(config types.FirewallConfig, opts ...tencent.Option) (*tencent.Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "", TENCENT, LIGHTHOUSE:
		return tencent.NewProvider(config, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrProviderNotFound, config.Provider)
	}
}
