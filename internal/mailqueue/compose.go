package mailqueue

import (
	"errors"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

type mailTemplate struct {
	file    string
	subject string
}

var mailTemplates = map[string]mailTemplate{
	domain.MailTypeMakerCreated: {
		file:    "maker_created_email.html",
		subject: "Maker-Checker - Your maker account",
	},
	domain.MailTypeEmployeeReviewed: {
		file:    "employee_reviewed_email.html",
		subject: "Maker-Checker - Employee record reviewed",
	},
	domain.MailTypeResetPassword: {
		file:    "reset_password_otp_email.html",
		subject: "Maker-Checker - Reset password",
	},
}

var ErrUnsupportedType = errors.New("unsupported mail type")

// Composer 根据邮件类型选择模板并渲染成 go-mail 的消息
type Composer struct {
	from        string
	templateDir string
}

func NewComposer(from, templateDir string) *Composer {
	return &Composer{from: from, templateDir: templateDir}
}

func (c *Composer) Compose(msg domain.MailMessage) (*mail.Msg, error) {
	mt, ok := mailTemplates[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, msg.Type)
	}

	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	tmpl, err := template.ParseFiles(filepath.Join(c.templateDir, mt.file))
	if err != nil {
		return nil, fmt.Errorf("无法解析邮件模板: %w", err)
	}
	if err := m.SetBodyHTMLTemplate(tmpl, msg.Data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	m.Subject(mt.subject)

	return m, nil
}
