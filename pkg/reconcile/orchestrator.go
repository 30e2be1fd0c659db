// Package reconcile 根据公网 IP 变化重建防火墙白名单规则
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reckless-huang/dfirewall/pkg/metrics"
	"github.com/reckless-huang/dfirewall/pkg/types"
)

// Orchestrator 驱动一次完整的同步：检测 IP，删除旧规则，按模板创建新规则，更新标记
type Orchestrator struct {
	Provider   types.FirewallRuleProvider
	Tracker    types.IPTracker
	Template   types.FirewallRuleTemplate
	InstanceID string

	// Force 忽略标记文件，总是执行同步
	Force bool
	// DryRun 只查询，不修改云端规则和标记文件
	DryRun bool

	Metrics *metrics.Registry
	Now     func() time.Time
}

// Result 一次同步的结果
type Result struct {
	RunID         string
	State         State
	IP            string
	PreviousIP    string
	Deleted       int
	DeleteOutcome types.DeleteOutcome
	Created       int
	DryRun        bool
	MarkerErr     error
	Duration      time.Duration
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) instanceID() string {
	if o.InstanceID != "" {
		return o.InstanceID
	}
	return o.Template.InstanceID
}

// Run 执行一次同步。失败时返回 *StageError，同时返回已填充的部分结果
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	start := o.now()
	res := &Result{RunID: uuid.NewString(), State: StateIdle, DryRun: o.DryRun}
	log := slog.With("run_id", res.RunID, "instance_id", o.instanceID())

	err := o.run(ctx, log, res)

	res.Duration = o.now().Sub(start)
	o.Metrics.ObserveRun(res.State.String(), err == nil, o.now())
	if err == nil && !o.DryRun {
		o.Metrics.AddRules(res.Deleted, res.Created)
	}

	if err != nil {
		log.Error("同步失败", "state", res.State, "error", err)
	} else {
		log.Info("同步结束", "state", res.State, "ip", res.IP, "deleted", res.Deleted, "created", res.Created, "duration", res.Duration)
	}
	return res, err
}

func (o *Orchestrator) fail(res *Result, stage State, err error) error {
	res.State = StateFailed
	return &StageError{Stage: stage, Err: err}
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, res *Result) error {
	instanceID := o.instanceID()
	if instanceID == "" {
		return o.fail(res, StateIdle, types.ErrInvalidConfig)
	}
	if len(o.Template.Rules) == 0 {
		return o.fail(res, StateIdle, types.ErrEmptyTemplate)
	}

	res.State = StateCheckingIP
	ip, err := o.Tracker.CurrentPublicIP(ctx)
	if err != nil {
		return o.fail(res, StateCheckingIP, err)
	}
	res.IP = ip

	previous, err := o.Tracker.LastIP()
	if err != nil {
		return o.fail(res, StateCheckingIP, err)
	}
	res.PreviousIP = previous

	changed, err := o.Tracker.HasChanged(ip)
	if err != nil {
		return o.fail(res, StateCheckingIP, err)
	}
	if !changed && !o.Force {
		log.Info("公网IP未变化", "ip", ip)
		res.State = StateNoChange
		return nil
	}
	if changed {
		log.Info("检测到公网IP变化", "previous", previous, "ip", ip)
		o.Metrics.IPChanged()
	}

	res.State = StateReconciling
	descriptions := o.Template.Descriptions()
	log.Debug("模板规则描述", "descriptions", descriptions)

	res.State = StateDeleting
	existing, err := o.Provider.QueryByDescription(ctx, instanceID, descriptions)
	if err != nil {
		return o.fail(res, StateDeleting, err)
	}

	if o.DryRun {
		res.Deleted = len(existing)
		res.Created = len(o.Template.Rules)
		for _, r := range existing {
			log.Info("[dry-run] 将删除规则", "description", r.FirewallRuleDescription, "cidr", r.CidrBlock, "port", r.Port)
		}
		for _, r := range o.Template.WithCidr(ip).Rules {
			log.Info("[dry-run] 将创建规则", "description", r.FirewallRuleDescription, "cidr", r.CidrBlock, "port", r.Port)
		}
		res.State = StateDone
		return nil
	}

	if len(existing) == 0 {
		log.Info("没有需要删除的规则")
	} else {
		rules := make([]types.FirewallRule, 0, len(existing))
		for _, r := range existing {
			rules = append(rules, r.Rule())
		}
		outcome, err := o.Provider.DeleteRules(ctx, instanceID, rules)
		res.DeleteOutcome = outcome
		if err != nil {
			return o.fail(res, StateDeleting, err)
		}
		if outcome == types.DeleteOutcomeDeleted {
			res.Deleted = len(rules)
		}
		log.Info("删除旧规则", "count", len(rules), "outcome", outcome)
	}

	res.State = StateCreating
	remaining, err := o.Provider.QueryByDescription(ctx, instanceID, descriptions)
	if err != nil {
		return o.fail(res, StateCreating, err)
	}
	if len(remaining) > 0 {
		dup := &types.DuplicateRuleError{}
		for _, r := range remaining {
			dup.Descriptions = append(dup.Descriptions, r.FirewallRuleDescription)
		}
		return o.fail(res, StateCreating, dup)
	}

	desired := o.Template.WithCidr(ip)
	if err := o.Provider.CreateRules(ctx, instanceID, desired.Rules); err != nil {
		return o.fail(res, StateCreating, err)
	}
	res.Created = len(desired.Rules)
	log.Info("创建新规则", "count", res.Created, "ip", ip)

	res.State = StatePersisting
	if err := o.Tracker.Persist(ip); err != nil {
		// 云端规则已正确，下次运行会重复一次完整同步
		log.Warn("更新标记文件失败", "error", err)
		res.MarkerErr = err
	}

	res.State = StateDone
	return nil
}

// Watch 立即执行一次同步，之后每隔 interval 执行，直到 ctx 结束。单次失败只记录日志
func (o *Orchestrator) Watch(ctx context.Context, interval time.Duration, onResult func(*Result, error)) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		res, err := o.Run(ctx)
		if onResult != nil {
			onResult(res, err)
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			slog.Info("停止监听", "reason", ctx.Err())
			return
		case <-ticker.C:
			tick()
		}
	}
}
