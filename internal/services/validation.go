package services

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"geekshub-backend-go/internal/models"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag     = "notblank"
	materialTypeTag = "material_type"
	rejectReasonTag = "reject_reason"
	roleTag         = "role"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names so errors line up with request bodies.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(str) != ""
	})
	_ = validate.RegisterValidation(materialTypeTag, func(fl validator.FieldLevel) bool {
		return models.MaterialType(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(rejectReasonTag, func(fl validator.FieldLevel) bool {
		return models.RejectReason(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(roleTag, func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, role := range models.Roles {
			if role == value {
				return true
			}
		}
		return false
	})

	registerCustomTranslations(map[string]string{
		notBlankTag:     "this field cannot be blank",
		materialTypeTag: "must be one of Slides, Homeworks, Past Papers, Notes",
		rejectReasonTag: "must be one of DUPLICATE, OUTDATED, INCORRECT_COURSE, BAD_QUALITY, OTHER",
		roleTag:         "must be one of STUDENT, ADMIN, MODERATOR",
	})
}

func registerCustomTranslations(texts map[string]string) {
	noop := func(ut.Translator) error { return nil }
	for tag, text := range texts {
		text := text
		_ = validate.RegisterTranslation(tag, translator, noop, func(ut.Translator, validator.FieldError) string {
			return text
		})
	}
}

// Validate checks s against its validate tags and returns a 400
// ServiceError with one message per failing field.
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ErrBadRequest(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	return ErrValidation(fields)
}
