package service

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// ── 选课密码 ──

// PasswordPolicy 宿主平台的密码策略，返回的错误信息直接回显给用户
type PasswordPolicy interface {
	Check(password string) error
}

type minLengthPolicy struct {
	min int
}

// NewMinLengthPolicy 仅校验最小长度的密码策略
func NewMinLengthPolicy(min int) PasswordPolicy {
	return &minLengthPolicy{min: min}
}

func (p *minLengthPolicy) Check(password string) error {
	if utf8.RuneCountInString(password) < p.min {
		return fmt.Errorf("密码长度不能少于 %d 个字符", p.min)
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// MatchEnrolmentKey 校验提交的选课密码
// 历史数据为明文存储，按原值比较；bcrypt 格式的存储值按哈希校验
func MatchEnrolmentKey(stored, submitted string) bool {
	if stored == "" {
		return true
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// HashEnrolmentKey 生成选课密码的 bcrypt 哈希，空密码原样返回
func HashEnrolmentKey(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
