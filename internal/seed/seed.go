// Package seed 向存储中写入测试数据：随机生成的 checker、maker、待审核员工，
// 或者从 CSV 文件导入的账号
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/repository"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/utils"
)

type Seeder struct {
	store        repository.Store
	password     string
	emailDomain  string
	assetBaseURL string
}

func NewSeeder(store repository.Store, password, emailDomain, assetBaseURL string) *Seeder {
	return &Seeder{
		store:        store,
		password:     password,
		emailDomain:  emailDomain,
		assetBaseURL: strings.TrimRight(assetBaseURL, "/"),
	}
}

// Checkers 插入 n 个随机 checker，邮箱冲突的会被跳过
func (s *Seeder) Checkers(ctx context.Context, n int) ([]*domain.Account, error) {
	checkers := make([]*domain.Account, 0, n)
	for i := 0; i < n; i++ {
		checker, err := utils.GenerateRandomChecker(s.password, s.emailDomain)
		if err != nil {
			return checkers, err
		}
		if err := s.store.CreateAccount(ctx, checker); err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				slog.Warn("邮箱已存在，跳过", "email", checker.Email)
				continue
			}
			return checkers, err
		}
		checkers = append(checkers, checker)
	}
	return checkers, nil
}

// Makers 为 checker 插入 n 个随机 maker
func (s *Seeder) Makers(ctx context.Context, checker *domain.Account, n int) ([]*domain.Account, error) {
	makers := make([]*domain.Account, 0, n)
	for i := 0; i < n; i++ {
		maker, err := utils.GenerateRandomMaker(s.password, s.emailDomain, checker.ID)
		if err != nil {
			return makers, err
		}
		if err := s.store.CreateAccount(ctx, maker); err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				slog.Warn("邮箱已存在，跳过", "email", maker.Email)
				continue
			}
			return makers, err
		}
		makers = append(makers, maker)
	}
	return makers, nil
}

// Employees 以 maker 的名义插入 n 条待审核记录
func (s *Seeder) Employees(ctx context.Context, maker *domain.Account, n int) ([]*domain.Employee, error) {
	employees := make([]*domain.Employee, 0, n)
	for i := 0; i < n; i++ {
		employee := utils.GenerateRandomEmployee(maker, s.assetBaseURL)
		if err := s.store.CreateEmployee(ctx, employee); err != nil {
			return employees, err
		}
		employees = append(employees, employee)
	}
	return employees, nil
}

var requiredHeaders = []string{"email", "role", "checker_email", "first_name", "last_name"}

// ImportAccounts 从 CSV 中导入账号。role 为 checker 或 maker，maker 行的
// checker_email 必须指向已存在的 checker（可以是同一文件中靠前的行）。
// 出错的行会被记录并跳过，返回成功导入的数量
func (s *Seeder) ImportAccounts(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	for _, h := range requiredHeaders {
		if !slices.Contains(headers, h) {
			return 0, fmt.Errorf("缺少列 %q", h)
		}
	}

	imported := 0
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return imported, fmt.Errorf("读取文件失败: %w", err)
		}

		record := make(map[string]string, len(headers))
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}

		if err := s.importRecord(ctx, record); err != nil {
			slog.Error("导入账号失败", "email", record["email"], "error", err)
			continue
		}
		imported++
	}

	return imported, nil
}

func (s *Seeder) importRecord(ctx context.Context, record map[string]string) error {
	email := record["email"]
	if email == "" {
		return errors.New("没有找到邮箱")
	}

	var account *domain.Account
	var err error
	switch domain.Role(record["role"]) {
	case domain.RoleChecker:
		account, err = domain.NewChecker(email, s.password)
	case domain.RoleMaker:
		checker, lookupErr := s.store.GetAccountByEmail(ctx, record["checker_email"])
		if lookupErr != nil {
			return fmt.Errorf("找不到 checker %q: %w", record["checker_email"], lookupErr)
		}
		if !checker.IsChecker {
			return fmt.Errorf("%q 不是 checker", checker.Email)
		}
		account, err = domain.NewMaker(email, s.password, checker.ID)
	default:
		return fmt.Errorf("未知的角色 %q", record["role"])
	}
	if err != nil {
		return err
	}

	account.FirstName = record["first_name"]
	account.LastName = record["last_name"]

	return s.store.CreateAccount(ctx, account)
}
