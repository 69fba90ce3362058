package handlers

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"posts-backend/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var personName = regexp.MustCompile(`^[a-zA-ZÀ-ÖØ-öø-ÿ '.-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personName.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// fieldMessages is keyed by "<json field>.<tag>".
var fieldMessages = map[string]string{
	"name.required":        "name is required",
	"name.min":             "name should be between 2 to 30 characters",
	"name.max":             "name should be between 2 to 30 characters",
	"name.personname":      "Enter a valid name",
	"email.required":       "Email address is required",
	"email.email":          "Enter a valid email address",
	"password.required":    "Password is required",
	"password.min":         "Password should be at least 8 characters",
	"oldPassword.required": "This field is required",
	"oldPassword.min":      "Old password should be at least 8 characters",
	"newPassword.required": "This field is required",
	"newPassword.min":      "New password should be at least 8 characters",
	"title.required":       "Post title is required",
	"title.max":            "Post title cannot be more than 100 characters",
	"body.required":        "Post body is required",
}

// bind parses the request body into out, trims its string fields and
// validates it.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	trimStrings(out)
	return validateStruct(out)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		fields[fe.Field()] = msg
	}
	return &services.ValidationError{Errors: fields}
}

func trimStrings(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}
