package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/pkg/api"
)

// DefaultMaxBatchSize максимальное количество изменений в батче по умолчанию
const DefaultMaxBatchSize = 500

// Errors список ошибок валидации по полям.
// Возвращается целиком, чтобы клиент мог исправить все поля за раз.
type Errors []api.FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// BatchValidator проверяет форму батча и payload каждого upsert
type BatchValidator struct {
	validate     *validator.Validate
	maxBatchSize int
}

// NewBatchValidator создает валидатор. maxBatchSize <= 0 означает значение по умолчанию.
func NewBatchValidator(maxBatchSize int) *BatchValidator {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// Ошибки адресуются по именам полей JSON, а не Go
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// decimal.Decimal проверяется как число (gte, lte)
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &BatchValidator{validate: v, maxBatchSize: maxBatchSize}
}

// MaxBatchSize возвращает лимит изменений в батче
func (v *BatchValidator) MaxBatchSize() int {
	return v.maxBatchSize
}

// ValidateRequest проверяет запрос. Возвращает Errors при ошибках валидации.
func (v *BatchValidator) ValidateRequest(req *api.PushRequest) error {
	if req == nil {
		return Errors{{Field: "body", Tag: "required", Message: "request body is required"}}
	}

	var errs Errors

	if err := v.validate.Struct(req); err != nil {
		fieldErrs, convErr := v.convert(err, "")
		if convErr != nil {
			return convErr
		}
		errs = append(errs, fieldErrs...)
	}

	if len(req.Changes) > v.maxBatchSize {
		errs = append(errs, api.FieldError{
			Field:   "changes",
			Tag:     "max",
			Param:   strconv.Itoa(v.maxBatchSize),
			Message: fmt.Sprintf("batch must contain at most %d changes", v.maxBatchSize),
		})
	}

	for i := range req.Changes {
		ch := &req.Changes[i]
		if ch.Op != string(models.OpUpsert) {
			continue
		}
		kind, err := models.ParseEntityKind(ch.Entity)
		if err != nil {
			// Уже отражено ошибкой oneof
			continue
		}
		payloadErrs, err := v.validatePayload(kind, ch.Data, fmt.Sprintf("changes[%d].data", i))
		if err != nil {
			return err
		}
		errs = append(errs, payloadErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validatePayload проверяет поля upsert по схеме типа сущности.
// Лишние поля допускаются.
func (v *BatchValidator) validatePayload(kind models.EntityKind, data api.ChangeData, prefix string) (Errors, error) {
	payload, ok := models.NewPayload(kind)
	if !ok {
		return nil, nil
	}

	fields := make(map[string]json.RawMessage, len(data.Fields)+1)
	for k, raw := range data.Fields {
		fields[k] = raw
	}
	id, err := json.Marshal(data.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode id: %w", err)
	}
	fields[models.FieldID] = id

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Errors{{
				Field:   prefix + "." + typeErr.Field,
				Tag:     "type",
				Param:   typeErr.Type.String(),
				Message: fmt.Sprintf("must be of type %s", jsonTypeName(typeErr.Type)),
			}}, nil
		}
		return Errors{{
			Field:   prefix,
			Tag:     "type",
			Message: err.Error(),
		}}, nil
	}

	if err := v.validate.Struct(payload); err != nil {
		return v.convert(err, prefix)
	}
	return nil, nil
}

// convert переводит ошибки validator в Errors.
// Пространство имен валидатора начинается с имени типа, оно заменяется на prefix.
func (v *BatchValidator) convert(err error, prefix string) (Errors, error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("failed to validate: %w", err)
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if idx := strings.IndexByte(field, '.'); idx >= 0 {
			field = field[idx+1:]
		}
		if prefix != "" {
			field = prefix + "." + field
		}
		out = append(out, api.FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return out, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "nefield":
		return "must not be equal to " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}

func jsonTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return t.String()
	}
}
