package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"

	"github.com/google/uuid"
	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

// GenerateRandomChineseName 返回姓和名
func GenerateRandomChineseName() (string, string) {
	surname := commonSurnames[mrand.Intn(len(commonSurnames))]
	nameLength := mrand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[mrand.Intn(len(commonNameCharacters))]
	}
	return surname, name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := mrand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := mrand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[mrand.Intn(len(digits))])
	}

	return username
}

type randomPerson struct {
	firstName string
	lastName  string
	username  string
}

func generateRandomPerson() randomPerson {
	surname, name := GenerateRandomChineseName()
	return randomPerson{
		firstName: name,
		lastName:  surname,
		username:  GenerateUsernameFromChineseName(surname + name),
	}
}

func GenerateRandomChecker(password string, emailDomainName string) (*domain.Account, error) {
	p := generateRandomPerson()

	checker, err := domain.NewChecker(p.username+"@"+emailDomainName, password)
	if err != nil {
		return nil, err
	}
	checker.Username = p.username
	checker.FirstName = p.firstName
	checker.LastName = p.lastName

	return checker, nil
}

func GenerateRandomMaker(password string, emailDomainName string, checkerID uuid.UUID) (*domain.Account, error) {
	p := generateRandomPerson()

	maker, err := domain.NewMaker(p.username+"@"+emailDomainName, password, checkerID)
	if err != nil {
		return nil, err
	}
	maker.Username = p.username
	maker.FirstName = p.firstName
	maker.LastName = p.lastName

	return maker, nil
}

// GenerateRandomEmployee 生成一条待审核的员工记录，照片和简历指向占位地址
func GenerateRandomEmployee(maker *domain.Account, assetBaseURL string) *domain.Employee {
	surname, name := GenerateRandomChineseName()
	employee := domain.NewEmployee(name, surname, maker)

	employee.PhotoPublicID = "employees/photos/seed-" + employee.ID
	employee.PhotoURL = assetBaseURL + "/" + employee.PhotoPublicID
	employee.ResumePublicID = "employees/resumes/seed-" + employee.ID
	employee.ResumeURL = assetBaseURL + "/" + employee.ResumePublicID

	return employee
}

// GenerateRandomOTP 生成 6 位数字验证码
func GenerateRandomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) (string, error) {
	randomPassword := make([]rune, length)
	limit := big.NewInt(int64(len(letters)))
	for i := range randomPassword {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		randomPassword[i] = letters[n.Int64()]
	}
	return string(randomPassword), nil
}
