package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig     = errors.New("invalid provider configuration")
	ErrProviderNotFound  = errors.New("firewall provider not found")
	ErrRuleAlreadyExists = errors.New("firewall rule already exists")
	ErrRuleNotFound      = errors.New("firewall rule not found")
	ErrEmptySecretKey    = errors.New("secret key is empty")
	ErrEmptyTemplate     = errors.New("firewall rule template has no rules")
)

// CodeRulesNotFound 删除时规则已不存在的错误码，删除视为成功
const CodeRulesNotFound = "ResourceNotFound.FirewallRulesNotFound"

// NetworkError 网络层错误（DNS、TLS、连接、响应体无法解析）
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError 云厂商控制面返回的错误
type ProviderError struct {
	Action    string
	Code      string
	Message   string
	RequestID string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
	if e.Action != "" {
		msg = e.Action + ": " + msg
	}
	if e.RequestID != "" {
		msg += " (request id " + e.RequestID + ")"
	}
	return msg
}

// IsRuleNotFound 判断是否为规则不存在错误
func (e *ProviderError) IsRuleNotFound() bool {
	return e.Code == CodeRulesNotFound
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrRuleNotFound && e.IsRuleNotFound()
}

// DuplicateRuleError 创建前发现同描述规则仍存在
type DuplicateRuleError struct {
	Descriptions []string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("rule(s) already exist in firewall, delete them first: %s", strings.Join(e.Descriptions, ", "))
}

func (e *DuplicateRuleError) Is(target error) bool {
	return target == ErrRuleAlreadyExists
}

// MarkerError 本地 IP 标记文件读写错误
type MarkerError struct {
	Op   string
	Path string
	Err  error
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("marker %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MarkerError) Unwrap() error { return e.Err }
