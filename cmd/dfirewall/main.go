package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	region     string
	secretID   string
	secretKey  string
	instanceID string
	verbose    bool
	configFile = "config.yaml"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dfirewall",
		Short:         "Keep Lighthouse firewall rules in sync with your public IP",
		SilenceUsage:  true,
		SilenceErrors: true,
		// 初始化日志
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			initLogger(cfg.Log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "Region ID (default ap-shanghai)")
	rootCmd.PersistentFlags().StringVar(&secretID, "secret-id", "", "Tencent Cloud SecretId")
	rootCmd.PersistentFlags().StringVar(&secretKey, "secret-key", "", "Tencent Cloud SecretKey")
	rootCmd.PersistentFlags().StringVarP(&instanceID, "instance-id", "i", "", "Lighthouse instance ID")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log request and response bodies")

	// 添加子命令
	rootCmd.AddCommand(
		newSyncCmd(),
		newWatchCmd(),
		newShowIPCmd(),
		newListRulesCmd(),
		newRemoveRulesCmd(),
		newSelectInstanceCmd(),
		newResetMarkerCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}
