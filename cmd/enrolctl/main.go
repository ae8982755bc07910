package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/donyariesta/prerequisite/config"
	"github.com/donyariesta/prerequisite/internal/plugin"
	"github.com/donyariesta/prerequisite/internal/repository"
	"github.com/donyariesta/prerequisite/internal/service"
	"github.com/donyariesta/prerequisite/pkg/database"
	"github.com/donyariesta/prerequisite/pkg/jwt"
	applogger "github.com/donyariesta/prerequisite/pkg/logger"
)

var (
	configPath string
	steps      int
	userID     int64
	courseID   int64
	role       string
	skipCheck  bool
)

// app 子命令共享的依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	repo   *repository.Repository
	svc    *service.Service
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "enrolctl",
		Short:        "先修课程选课方式运维工具",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")

	rootCmd.AddCommand(migrateCmd(), prerequisiteCmd(), eligibilityCmd(), completionCmd(), tokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// ── 依赖初始化 ──

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func newApp() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	repo := repository.NewRepository(db)
	svc, err := service.NewService(cfg, repo, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, db: db, repo: repo, svc: svc}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.logger.Sync()
}

func parseID(s, name string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s 必须为正整数: %q", name, s)
	}
	return id, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── migrate ──

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "执行或回滚数据库迁移",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "执行全部未应用的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return database.RunMigrations(sqlDB, a.logger)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "回滚最近的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps 必须为正整数")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return database.RollbackMigrations(sqlDB, steps, a.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚的迁移数")

	cmd.AddCommand(up, down)
	return cmd
}

// ── prerequisite ──

func prerequisiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prerequisite",
		Short: "查看或替换实例的先修课程",
	}

	show := &cobra.Command{
		Use:   "show <instance_id>",
		Short: "显示实例配置与先修课程",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, err := parseID(args[0], "instance_id")
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			inst, err := a.svc.Instance.Get(cmd.Context(), instanceID)
			if err != nil {
				return err
			}
			return printJSON(inst)
		},
	}

	set := &cobra.Command{
		Use:   "set <instance_id> [course_id...]",
		Short: "全量替换实例的先修课程，不传课程则清空",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, err := parseID(args[0], "instance_id")
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := parseID(arg, "course_id")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			inst, err := a.svc.Instance.Get(ctx, instanceID)
			if err != nil {
				return err
			}
			if _, err := a.svc.Instance.ReplaceRequiredCourses(ctx, inst.ID, inst.CourseID, ids); err != nil {
				return err
			}

			inst, err = a.svc.Instance.Get(ctx, instanceID)
			if err != nil {
				return err
			}
			return printJSON(inst.RequiredCourses)
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

// ── eligibility ──

func eligibilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eligibility <instance_id>",
		Short: "评估用户能否通过实例选课（不传 --user 视为访客）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, err := parseID(args[0], "instance_id")
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			identity := plugin.GuestIdentity()
			if userID > 0 {
				identity = plugin.Identity{UserID: userID}
			}
			resp, err := a.svc.Enrolment.CheckEligibility(cmd.Context(), instanceID, identity, !skipCheck)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "用户 ID")
	cmd.Flags().BoolVar(&skipCheck, "skip-user-check", false, "跳过访客与已选课检查")
	return cmd
}

// ── completion ──

func completionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "维护课程完成记录（用于联调）",
	}

	mark := &cobra.Command{
		Use:   "mark",
		Short: "将用户标记为已完成课程",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 || courseID <= 0 {
				return fmt.Errorf("--user 与 --course 必须为正整数")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.repo.Completion.MarkCompleted(ctx, courseID, userID, time.Now()); err != nil {
				return err
			}
			cc, err := a.repo.Completion.GetByCourseAndUser(ctx, courseID, userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("完成记录写入后未找到")
				}
				return err
			}
			return printJSON(cc)
		},
	}
	mark.Flags().Int64VarP(&userID, "user", "u", 0, "用户 ID")
	mark.Flags().Int64Var(&courseID, "course", 0, "课程 ID")

	cmd.AddCommand(mark)
	return cmd
}

// ── token ──

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发本地调试用 Access Token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(userID, role)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "用户 ID（访客传 0）")
	cmd.Flags().StringVar(&role, "role", "student", "宿主角色，访客为 guest")
	return cmd
}
