package utils

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// GetKarmaLevel 根据 karma 返回用户等级
func GetKarmaLevel(karma int) string {
	switch {
	case karma >= 1000:
		return "legend"
	case karma >= 201:
		return "veteran"
	case karma >= 51:
		return "regular"
	case karma >= 11:
		return "member"
	default:
		return "freshman"
	}
}

// GetDaysSinceJoined 计算注册天数
func GetDaysSinceJoined(createdAt time.Time) int {
	return int(time.Since(createdAt).Hours() / 24)
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
