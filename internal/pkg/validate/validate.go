package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gymbuddy-notify/internal/domain"
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

func init() {
	// pushtoken accepts only gateway-issued token strings.
	_ = v.RegisterValidation("pushtoken", func(fl validator.FieldLevel) bool {
		return domain.ValidPushToken(fl.Field().String())
	})
}

// Struct validates the given struct using its validate tags. The returned
// error wraps domain.ErrBadRequest and lists every failing field.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrBadRequest)
	}
	return nil
}

// Buckets rejects toggle maps that name unknown preference buckets.
func Buckets(toggles map[domain.Bucket]bool) error {
	for b := range toggles {
		if !domain.ValidBucket(b) {
			return fmt.Errorf("unknown preference bucket %q: %w", b, domain.ErrBadRequest)
		}
	}
	return nil
}
