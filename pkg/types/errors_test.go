package types

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	err := &ProviderError{Action: "DeleteFirewallRules", Code: CodeRulesNotFound, Message: "not found", RequestID: "req-1"}
	assert.True(t, err.IsRuleNotFound())
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrRuleNotFound)
	assert.Equal(t, "DeleteFirewallRules: provider error ResourceNotFound.FirewallRulesNotFound: not found (request id req-1)", err.Error())

	other := &ProviderError{Code: "AuthFailure.SignatureFailure", Message: "bad"}
	assert.False(t, other.IsRuleNotFound())
	assert.NotErrorIs(t, other, ErrRuleNotFound)
	assert.Equal(t, "provider error AuthFailure.SignatureFailure: bad", other.Error())
}

func TestDuplicateRuleError(t *testing.T) {
	err := &DuplicateRuleError{Descriptions: []string{"ssh", "wg"}}
	assert.ErrorIs(t, err, ErrRuleAlreadyExists)
	assert.Contains(t, err.Error(), "ssh, wg")
}

func TestWrappedErrors(t *testing.T) {
	cause := errors.New("dial tcp: lookup lighthouse.tencentcloudapi.com: no such host")
	var ne *NetworkError
	assert.True(t, errors.As(fmt.Errorf("x: %w", &NetworkError{Op: "DescribeFirewallRules", Err: cause}), &ne))
	assert.ErrorIs(t, ne, cause)

	me := &MarkerError{Op: "remove", Path: "/tmp/m", Err: fs.ErrPermission}
	assert.ErrorIs(t, me, fs.ErrPermission)
	assert.Equal(t, "marker remove /tmp/m: permission denied", me.Error())
}
