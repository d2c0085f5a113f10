package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	modeManual   = "manual"
	modeSchedule = "schedule"
)

type flags struct {
	mode       string
	headless   bool
	configPath string
	listen     string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "indexcollector",
		Short:         "运营商指数数据收集工具",
		Long:          "定期收集百度指数与微信指数，生成 Excel 报表（每周一、周五执行）。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.mode != modeManual && f.mode != modeSchedule {
				return fmt.Errorf("未知的运行模式 %q，可选 manual 或 schedule", f.mode)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(f, cmd.Flags().Changed("headless"))
			if err != nil {
				return err
			}
			defer a.Close()

			if f.mode == modeManual {
				return a.runManual(ctx)
			}
			return a.runSchedule(ctx)
		},
	}

	cmd.Flags().StringVar(&f.mode, "mode", modeManual, "运行模式: manual（立即执行一次）或 schedule（定时执行）")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "使用无头浏览器（覆盖配置文件）")
	cmd.Flags().StringVar(&f.configPath, "config", "", "配置文件路径（默认为可执行文件同目录下的 config.toml）")
	cmd.Flags().StringVar(&f.listen, "listen", "", "状态接口监听地址，例如 :8080（覆盖配置文件）")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "输出调试日志")
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
