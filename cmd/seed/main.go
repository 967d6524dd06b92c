package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/config"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var csvPath string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机 checker 及其 maker 和员工记录, 2: 从 CSV 导入账号)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&csvPath, "csv", "./accounts.csv", "导入账号的 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	seeder := seed.NewSeeder(repo, cfg.Seed.Password, cfg.Seed.Domain, cfg.S3.PublicBaseURL)

	ctx = context.Background()

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的数量")
			return
		}

		checkers, err := seeder.Checkers(ctx, n)
		if err != nil {
			slog.Error("无法插入 checker", slog.String("error", err.Error()))
			return
		}

		makerCnt, employeeCnt := 0, 0
		for _, checker := range checkers {
			makers, err := seeder.Makers(ctx, checker, n)
			if err != nil {
				slog.Error("无法插入 maker", slog.String("checker", checker.Email), slog.String("error", err.Error()))
				continue
			}
			makerCnt += len(makers)

			for _, maker := range makers {
				employees, err := seeder.Employees(ctx, maker, n)
				if err != nil {
					slog.Error("无法插入员工记录", slog.String("maker", maker.Email), slog.String("error", err.Error()))
					continue
				}
				employeeCnt += len(employees)
			}
		}

		slog.Info("插入数据成功", slog.Int("checkers", len(checkers)), slog.Int("makers", makerCnt), slog.Int("employees", employeeCnt))
	case 2:
		file, err := os.Open(csvPath)
		if err != nil {
			slog.Error("打开文件失败", "error", err)
			return
		}
		defer file.Close()

		imported, err := seeder.ImportAccounts(ctx, file)
		if err != nil {
			slog.Error("导入账号失败", "error", err)
			return
		}
		slog.Info("导入账号完成", slog.Int("count", imported))
	default:
		slog.Error("指定的操作非法")
	}
}
