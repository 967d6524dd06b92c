package domain

const (
	MailTypeMakerCreated     = "maker_created"
	MailTypeEmployeeReviewed = "employee_reviewed"
	MailTypeResetPassword    = "reset_password"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// Password 只在 checker 没有指定密码、由系统生成时才会带上
type MakerCreatedMailData struct {
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	CheckerEmail string `json:"checkerEmail"`
}

type EmployeeReviewedMailData struct {
	EmployeeName string `json:"employeeName"`
	Status       string `json:"status"`
	CheckerEmail string `json:"checkerEmail"`
}

type ResetPasswordMailData struct {
	Email      string `json:"email"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}
