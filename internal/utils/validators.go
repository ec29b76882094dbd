package utils

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	// Translator renders validation errors in English
	Translator ut.Translator

	initOnce sync.Once

	// custom validation tags & texts
	currencyTag   = "currency"
	currencyText  = "{0} must be a three letter currency code"
	currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)

	categoryTag  = "fee_category"
	categoryText = "{0} must be one of tuition, boarding or other"
)

// InitValidators registers English messages, JSON field names and the custom
// tags on gin's validator. Later calls do nothing.
func InitValidators() {
	initOnce.Do(initValidators)
}

func initValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(currencyTag, func(fl validator.FieldLevel) bool {
		return currencyRegex.MatchString(fl.Field().String())
	})
	registerTranslation(v, currencyTag, currencyText)

	_ = v.RegisterValidation(categoryTag, func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "tuition", "boarding", "other":
			return true
		}
		return false
	})
	registerTranslation(v, categoryTag, categoryText)
}

func registerTranslation(v *validator.Validate, tag, text string) {
	_ = v.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidationMessage turns a binding error into a readable message
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if Translator == nil || !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(Translator))
	}
	return strings.Join(msgs, "; ")
}
