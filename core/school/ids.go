package school

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// External ID prefixes
const (
	TeacherIDPrefix = "TCH"
	StudentIDPrefix = "STU"
)

const (
	idLen         = 6
	idAlphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxIDAttempts = 10

	pwdLen      = 12
	pwdLower    = "abcdefghijkmnopqrstuvwxyz"
	pwdUpper    = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	pwdDigits   = "23456789"
	pwdSpecials = "!@#$%*?"
)

var randReader io.Reader = rand.Reader // mockable

func randIndex(n int) (int, error) {
	i, err := rand.Int(randReader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(i.Int64()), nil
}

func randString(alphabet string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := randIndex(len(alphabet))
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[idx])
	}
	return sb.String(), nil
}

// GenerateID returns prefix followed by 6 random upper-case alphanumerics, e.g. TCH4F9A2B.
func GenerateID(prefix string) (string, error) {
	s, err := randString(idAlphabet, idLen)
	if err != nil {
		return "", fmt.Errorf("generating ID: %w", err)
	}
	return prefix + s, nil
}

func (svc *Service) uniqueID(ctx context.Context, prefix string, exists func(context.Context, GetFilter) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := GenerateID(prefix)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, GetFilter{ExternalID: id})
		if err != nil {
			return "", fmt.Errorf("checking ID: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

// GeneratePassword returns a random initial password satisfying the password policy.
func GeneratePassword() (string, error) {
	classes := []string{pwdLower, pwdUpper, pwdDigits, pwdSpecials}
	all := strings.Join(classes, "")

	pwd := make([]byte, 0, pwdLen)
	for _, class := range classes {
		s, err := randString(class, 1)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		pwd = append(pwd, s...)
	}
	rest, err := randString(all, pwdLen-len(classes))
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	pwd = append(pwd, rest...)

	// shuffle
	for i := len(pwd) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		pwd[i], pwd[j] = pwd[j], pwd[i]
	}
	return string(pwd), nil
}
