package curlew

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("curlew: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// Validate checks the provided model against its declared tags.
// Violations come back as [ConfigErrors], one [ConfigError] per
// rejected field, each wrapping the matching sentinel where one
// exists.
func Validate(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var cfgErrs ConfigErrors
	for _, verror := range verrors {
		cfgErrs = append(cfgErrs, &ConfigError{
			Option: verror.Field(),
			Value:  fmt.Sprintf("%v", verror.Value()),
			Err:    errForTag(verror),
		})
	}

	return cfgErrs
}

func errForTag(verror validator.FieldError) error {
	switch verror.Tag() {
	case "file":
		return ErrFileNotFound
	default:
		return errors.New(verror.Translate(translator))
	}
}
