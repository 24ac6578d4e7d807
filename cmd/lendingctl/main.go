// lendingctl 运维命令行：手动触发扫描、签发操作员令牌。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"library-lending/config"
	"library-lending/internal/app"
	"library-lending/pkg/jwt"
	applogger "library-lending/pkg/logger"
)

const usage = `用法: lendingctl [-config path] <command> [flags]

命令:
  suspend  [-threshold cents]        停用未缴罚金超过阈值的学生
  notify                             发送当天逾期通知
  token    -operator id -role role   签发操作员 Access Token (librarian | admin)
`

var errUsage = errors.New("参数错误")

func main() {
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "lendingctl: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("lendingctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "配置文件路径")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if global.NArg() == 0 {
		return fmt.Errorf("%w: 缺少命令", errUsage)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "token":
		return runToken(cfg, cmdArgs, out)
	case "suspend", "notify":
		return runSweep(ctx, cfg, cmd, cmdArgs, out)
	default:
		return fmt.Errorf("%w: 未知命令 %q", errUsage, cmd)
	}
}

func runToken(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	operator := fs.String("operator", "", "操作员 ID")
	role := fs.String("role", jwt.RoleLibrarian, "角色 librarian | admin")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *operator == "" {
		return fmt.Errorf("%w: -operator 不能为空", errUsage)
	}
	if !jwt.ValidRole(*role) {
		return fmt.Errorf("%w: 未知角色 %q", errUsage, *role)
	}

	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(*operator, *role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runSweep(ctx context.Context, cfg *config.Config, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	threshold := fs.Int64("threshold", cfg.Lending.SuspensionThresholdCents, "停用阈值（分）")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	logger, err := applogger.NewLogger(&cfg.Log, "lendingctl")
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var result interface{}
	switch cmd {
	case "suspend":
		result, err = a.Service.Suspension.SuspendOverThreshold(ctx, *threshold)
	case "notify":
		result, err = a.Service.Notification.SendOverdueNotifications(ctx)
	}
	if err != nil {
		logger.Error("扫描执行失败", zap.String("command", cmd), zap.Error(err))
		return err
	}
	return writeJSON(out, result)
}

func writeJSON(out io.Writer, v interface{}) error {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
