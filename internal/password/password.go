// Package password реализует вычисление и проверку парольных хешей.
package password

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations — число итераций PBKDF2 при вычислении хеша.
	Iterations = 200000
	// SaltSize — длина соли в байтах.
	SaltSize = 16
	// KeySize — длина результирующего хеша в байтах.
	KeySize = 32
)

// Hash вычисляет PBKDF2-HMAC-SHA256 хеш пароля с заданной солью.
func Hash(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// NewSalt генерирует новую случайную соль.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Equal сравнивает два хеша за постоянное время.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// IsLegacySalt определяет, является ли соль маркером нехешированной
// учётной записи: пустая соль либо шестнадцать нулевых байт.
func IsLegacySalt(salt []byte) bool {
	if len(salt) == 0 {
		return true
	}
	return bytes.Equal(salt, make([]byte, SaltSize))
}
