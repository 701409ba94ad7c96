package school

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/elimu/core"
)

var (
	teacherIDTag   = "teacherid"
	teacherIDText  = "invalid teacher ID"
	teacherIDRegex = regexp.MustCompile(`^` + TeacherIDPrefix + `[0-9A-Z]{6}$`)

	// password policy
	pwdMinLen     = 8
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimText = "password cannot be similar to teacher attributes"
)

// InitValidators registers the school validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(teacherIDTag, teacherIDValidation)
	core.RegisterCustomTranslation(validate, translator, teacherIDTag, teacherIDText)
}

// teacherIDValidation checks the shape of an external teacher ID.
func teacherIDValidation(fl validator.FieldLevel) bool {
	return teacherIDRegex.MatchString(strings.ToUpper(fl.Field().String()))
}

// ValidatePassword applies the password policy to a teacher password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no similarity to name or email
func (svc *Service) ValidatePassword(pwd, name, email string) error {
	if msg := checkPassword(pwd, name, email); msg != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	return nil
}

func checkPassword(pwd, name, email string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		return pwdMinLenText
	}
	for _, char := range runes {
		if unicode.IsSpace(char) {
			return pwdNoSpaceText
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == len(runes) {
		return pwdNotAllNumText
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityText
	}

	getRatio := func(pass, attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim || getRatio(pwd, email) >= pwdMaxSim {
		return pwdAttrSimText
	}
	return ""
}

const rowsField = "rows"

func rowField(i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", rowsField, i, field)
}

func stripRowPrefix(field string) string {
	if strings.HasPrefix(field, rowsField+"[") {
		if idx := strings.Index(field, "]."); idx >= 0 {
			return field[idx+2:]
		}
	}
	return field
}
