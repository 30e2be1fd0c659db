package iptracker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/reckless-huang/dfirewall/pkg/types"
)

// MarkerFile 默认标记文件名，位于系统临时目录下
const MarkerFile = "update_qcloud_firewall_ip.txt"

// DefaultMarkerPath 返回 $TMPDIR/update_qcloud_firewall_ip.txt
func DefaultMarkerPath() string {
	return filepath.Join(os.TempDir(), MarkerFile)
}

// Tracker 获取当前公网 IP，并用标记文件记录上一次成功同步的 IP
type Tracker struct {
	source     Source
	markerPath string
}

var _ types.IPTracker = &Tracker{}

// New 创建 Tracker，markerPath 为空时使用默认路径
func New(source Source, markerPath string) *Tracker {
	if markerPath == "" {
		markerPath = DefaultMarkerPath()
	}
	return &Tracker{source: source, markerPath: markerPath}
}

func (t *Tracker) MarkerPath() string { return t.markerPath }

func (t *Tracker) Source() Source { return t.source }

// CurrentPublicIP 查询当前公网 IP，不修改任何状态
func (t *Tracker) CurrentPublicIP(ctx context.Context) (string, error) {
	ip, err := t.source.PublicIP(ctx)
	if err != nil {
		return "", &types.NetworkError{Op: "lookup public ip via " + t.source.Name(), Err: err}
	}
	slog.Debug("获取到公网IP", "ip", ip, "source", t.source.Name())
	return ip, nil
}

// LastIP 读取标记文件中的 IP，文件不存在时返回空字符串
func (t *Tracker) LastIP() (string, error) {
	data, err := os.ReadFile(t.markerPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", &types.MarkerError{Op: "read", Path: t.markerPath, Err: err}
	}
	return strings.TrimSpace(string(data)), nil
}

// HasChanged 标记文件不存在或内容与 candidateIP 不同则返回 true
func (t *Tracker) HasChanged(candidateIP string) (bool, error) {
	data, err := os.ReadFile(t.markerPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, &types.MarkerError{Op: "read", Path: t.markerPath, Err: err}
	}
	return strings.TrimSpace(string(data)) != strings.TrimSpace(candidateIP), nil
}

// Persist 先删除旧标记文件再写入新 IP
func (t *Tracker) Persist(ip string) error {
	if err := t.remove(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.markerPath), 0o755); err != nil {
		return &types.MarkerError{Op: "create", Path: t.markerPath, Err: err}
	}
	if err := os.WriteFile(t.markerPath, []byte(strings.TrimSpace(ip)), 0o644); err != nil {
		return &types.MarkerError{Op: "write", Path: t.markerPath, Err: err}
	}
	slog.Debug("已更新标记文件", "path", t.markerPath, "ip", ip)
	return nil
}

// Reset 删除标记文件，下次同步必然触发规则更新
func (t *Tracker) Reset() error {
	return t.remove()
}

func (t *Tracker) remove() error {
	if err := os.Remove(t.markerPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &types.MarkerError{Op: "remove", Path: t.markerPath, Err: err}
	}
	return nil
}
