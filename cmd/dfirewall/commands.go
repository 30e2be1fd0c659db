package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/reckless-huang/dfirewall/pkg/iptracker"
	"github.com/reckless-huang/dfirewall/pkg/metrics"
	"github.com/reckless-huang/dfirewall/pkg/reconcile"
	"github.com/reckless-huang/dfirewall/pkg/types"
)

const defaultWatchInterval = 5 * time.Minute

func printResult(w io.Writer, res *reconcile.Result) {
	if res == nil {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run ID", "State", "IP", "Previous IP", "Deleted", "Delete Outcome", "Created", "Dry Run"})
	table.Append([]string{
		res.RunID,
		res.State.String(),
		res.IP,
		res.PreviousIP,
		strconv.Itoa(res.Deleted),
		res.DeleteOutcome.String(),
		strconv.Itoa(res.Created),
		strconv.FormatBool(res.DryRun),
	})
	table.Render()

	if res.MarkerErr != nil {
		fmt.Fprintf(w, "Warning: marker not updated, next sync will repeat: %v\n", res.MarkerErr)
	}
}

// 组装一次同步需要的全部依赖
func newOrchestrator(cfg Config, templatePath string, reg *metrics.Registry) (*reconcile.Orchestrator, error) {
	tpl, err := loadRuleTemplate(cfg, templatePath)
	if err != nil {
		return nil, err
	}
	p, err := createProvider(cfg, reg)
	if err != nil {
		return nil, err
	}
	tr, err := createTracker(cfg)
	if err != nil {
		return nil, err
	}

	o := &reconcile.Orchestrator{
		Provider:   p,
		Tracker:    tr,
		Template:   tpl,
		InstanceID: p.InstanceID(),
		Metrics:    reg,
	}
	if o.InstanceID == "" && tpl.InstanceID == "" {
		return nil, fmt.Errorf("no instance selected, please use select-instance command first")
	}
	return o, nil
}

func writeMetrics(reg *metrics.Registry, path string) {
	if err := reg.WriteTextfile(path); err != nil {
		slog.Warn("写入指标文件失败", "path", path, "error", err)
	}
}

// 执行一次同步
func newSyncCmd() *cobra.Command {
	var (
		templatePath string
		force        bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace template rules when the public IP has changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}

			reg := newMetrics(cfg)
			o, err := newOrchestrator(cfg, templatePath, reg)
			if err != nil {
				return err
			}
			o.Force = force
			o.DryRun = dryRun

			res, err := o.Run(cmd.Context())
			writeMetrics(reg, cfg.Metrics.Textfile)
			printResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Rule template file (default rules.json)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Sync even if the public IP is unchanged")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only show what would change")

	return cmd
}

// 周期性同步，直到收到退出信号
func newWatchCmd() *cobra.Command {
	var (
		templatePath string
		interval     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}

			if !cmd.Flags().Changed("interval") {
				interval = cfg.Watch.Interval
			}
			if interval <= 0 {
				interval = defaultWatchInterval
			}

			reg := newMetrics(cfg)
			o, err := newOrchestrator(cfg, templatePath, reg)
			if err != nil {
				return err
			}

			slog.Info("开始监听公网IP变化", "interval", interval, "instance_id", o.InstanceID)
			o.Watch(cmd.Context(), interval, func(res *reconcile.Result, err error) {
				writeMetrics(reg, cfg.Metrics.Textfile)
				if res != nil && res.State != reconcile.StateNoChange {
					printResult(cmd.OutOrStdout(), res)
				}
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Rule template file (default rules.json)")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "Check interval")

	return cmd
}

// 查看当前公网IP
func newShowIPCmd() *cobra.Command {
	var detail bool

	cmd := &cobra.Command{
		Use:   "show-ip",
		Short: "Show current public IP and the recorded marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			tr, err := createTracker(cfg)
			if err != nil {
				return err
			}

			ip, err := tr.CurrentPublicIP(cmd.Context())
			if err != nil {
				return err
			}
			last, err := tr.LastIP()
			if err != nil {
				return err
			}
			changed, err := tr.HasChanged(ip)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Public IP", "Marker IP", "Changed", "Source", "Marker File"})
			table.Append([]string{ip, last, strconv.FormatBool(changed), tr.Source().Name(), tr.MarkerPath()})
			table.Render()

			if !detail {
				return nil
			}

			info, err := iptracker.LookupInfo(cmd.Context(), nil, "")
			if err != nil {
				return err
			}
			table = tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Field", "Value"})
			table.AppendBulk([][]string{
				{"IP", info.IP},
				{"Country", info.Country},
				{"Country ISO", info.CountryISO},
				{"Region", info.Region},
				{"City", info.City},
				{"Time Zone", info.TimeZone},
				{"ASN", info.ASN},
				{"ASN Org", info.ASNOrg},
				{"User Agent", info.UserAgent.RawValue},
			})
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&detail, "detail", "d", false, "Show geo location of the public IP")

	return cmd
}

// 列出防火墙规则
func newListRulesCmd() *cobra.Command {
	var descriptions []string

	cmd := &cobra.Command{
		Use:   "list-rules",
		Short: "List firewall rules of the selected instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			p, err := createProvider(cfg, nil)
			if err != nil {
				return err
			}
			if p.InstanceID() == "" {
				return fmt.Errorf("no instance selected, please use select-instance command first")
			}

			var rules []types.RemoteRule
			if len(descriptions) > 0 {
				rules, err = p.QueryByDescription(cmd.Context(), p.InstanceID(), descriptions)
			} else {
				rules, err = p.QueryAll(cmd.Context(), p.InstanceID())
			}
			if err != nil {
				return err
			}

			// 创建表格
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Rule ID", "Protocol", "Port", "Cidr Block", "Action", "Description", "App Type"})

			for _, r := range rules {
				table.Append([]string{
					p.GenerateRuleHash(r.Rule()),
					r.Protocol,
					r.Port,
					r.CidrBlock,
					r.Action,
					r.FirewallRuleDescription,
					r.AppType,
				})
			}
			// 渲染表格
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&descriptions, "description", "d", nil, "Only show rules with this description (repeatable)")

	return cmd
}

// 删除模板中描述的规则
func newRemoveRulesCmd() *cobra.Command {
	var templatePath string

	cmd := &cobra.Command{
		Use:   "remove-rules",
		Short: "Delete the rules described by the template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			tpl, err := loadRuleTemplate(cfg, templatePath)
			if err != nil {
				return err
			}
			p, err := createProvider(cfg, nil)
			if err != nil {
				return err
			}

			id := firstNonEmpty(p.InstanceID(), tpl.InstanceID)
			if id == "" {
				return fmt.Errorf("no instance selected, please use select-instance command first")
			}

			rules, err := p.QueryByDescription(cmd.Context(), id, tpl.Descriptions())
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching rules found")
				return nil
			}

			toDelete := make([]types.FirewallRule, 0, len(rules))
			for _, r := range rules {
				toDelete = append(toDelete, r.Rule())
			}
			outcome, err := p.DeleteRules(cmd.Context(), id, toDelete)
			if err != nil {
				return err
			}
			slog.Info("Rules removed", "instance_id", id, "count", len(toDelete), "outcome", outcome)

			// 规则已删除，下次 sync 需要重新创建
			tr, err := createTracker(cfg)
			if err != nil {
				return err
			}
			if err := tr.Reset(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rule(s): %s\n", len(toDelete), outcome)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Rule template file (default rules.json)")

	return cmd
}

// 选择实例并保存到配置文件
func newSelectInstanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-instance [instance-id]",
		Short: "Select and save current Lighthouse instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}

			// 验证实例是否存在
			p, err := createProvider(cfg, nil)
			if err != nil {
				return err
			}
			rules, err := p.QueryAll(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("instance not found: %w", err)
			}

			// 保存配置
			if cfg.Tencent == nil {
				cfg.Tencent = &TencentConfig{}
			}
			cfg.Tencent.InstanceID = id
			if region != "" {
				cfg.Tencent.Region = region
			}
			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("save config failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Current instance set to: %s (%d firewall rules)\n", id, len(rules))
			return nil
		},
	}
	return cmd
}

// 删除标记文件
func newResetMarkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-marker",
		Short: "Forget the recorded IP so the next sync always runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			tr, err := createTracker(cfg)
			if err != nil {
				return err
			}
			if err := tr.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marker removed: %s\n", tr.MarkerPath())
			return nil
		},
	}
	return cmd
}
