// Package validator checks the shape of incoming student and room payloads.
// A payload is the decoded JSON object (field name to raw value).  Numeric
// fields are coerced from JSON numbers or numeric strings; every violation
// is collected into a single apperrors.ValidationError.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
)

var (
	personNameRe = regexp.MustCompile(`^[A-ZÁ-Ž][a-zá-ž]{0,29}$`)
	streetRe     = regexp.MustCompile(`^[A-ZÁ-Ž][a-zá-ž ]+ [0-9]+(/\d+)?$`)
	cityRe       = regexp.MustCompile(`^[A-ZÁ-Ž][a-zá-ž ]{0,29}$`)
	postalCodeRe = regexp.MustCompile(`^[0-9]{3} [0-9]{2}$`)
)

// studentForm holds the raw student fields as strings and integers so the
// struct tags can describe the rules.
type studentForm struct {
	FirstName  string `json:"meno" validate:"required,max=30,personname"`
	LastName   string `json:"priezvisko" validate:"required,max=30,personname"`
	BirthDate  string `json:"datum_narodenia" validate:"required,datetime=2006-01-02,notfuture"`
	Email      string `json:"email" validate:"required,max=30,email"`
	Street     string `json:"ulica" validate:"required,max=30,street"`
	City       string `json:"mesto" validate:"required,max=30,city"`
	PostalCode string `json:"PSC" validate:"required,psc"`
	RoomID     int64  `json:"id_izba" validate:"gt=0"`
}

type roomForm struct {
	Number   int64 `json:"cislo" validate:"gt=0"`
	Capacity int64 `json:"kapacita" validate:"gt=0"`
}

var studentFields = []string{"meno", "priezvisko", "datum_narodenia", "email", "ulica", "mesto", "PSC", "id_izba"}

// Validator validates payloads.  It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New returns a Validator using the wall clock for the birth date rule.
func New() *Validator {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Validator whose "today" is taken from now.
func NewWithClock(now func() time.Time) *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), now: now}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v.validate, "personname", regexRule(personNameRe))
	mustRegister(v.validate, "street", regexRule(streetRe))
	mustRegister(v.validate, "city", regexRule(cityRe))
	mustRegister(v.validate, "psc", regexRule(postalCodeRe))
	mustRegister(v.validate, "notfuture", func(fl validator.FieldLevel) bool {
		d, err := model.ParseDate(fl.Field().String())
		if err != nil {
			// the datetime rule reports malformed dates
			return true
		}
		return !d.After(model.NewDate(v.now()).Time)
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

func regexRule(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Student validates an insert payload.  Fields other than the student
// fields are rejected.
func (v *Validator) Student(raw map[string]any) (model.StudentInput, error) {
	verr := apperrors.NewValidationError()
	rejectUnknown(raw, verr, studentFields...)
	in := v.student(raw, verr)
	return in, verr.OrNil()
}

// StudentUpdate validates a full update payload, which carries id_ziak in
// addition to every insert field.
func (v *Validator) StudentUpdate(raw map[string]any) (uint64, model.StudentInput, error) {
	verr := apperrors.NewValidationError()
	rejectUnknown(raw, verr, append([]string{"id_ziak"}, studentFields...)...)
	id := positiveInt(raw, "id_ziak", verr)
	in := v.student(raw, verr)
	return uint64(id), in, verr.OrNil()
}

func (v *Validator) student(raw map[string]any, verr *apperrors.ValidationError) model.StudentInput {
	requirePresent(raw, verr, "id_izba")
	form := studentForm{
		FirstName:  stringField(raw, "meno", verr),
		LastName:   stringField(raw, "priezvisko", verr),
		BirthDate:  stringField(raw, "datum_narodenia", verr),
		Email:      stringField(raw, "email", verr),
		Street:     stringField(raw, "ulica", verr),
		City:       stringField(raw, "mesto", verr),
		PostalCode: stringField(raw, "PSC", verr),
		RoomID:     intField(raw, "id_izba", verr),
	}
	v.check(form, verr)

	in := model.StudentInput{
		FirstName:  form.FirstName,
		LastName:   form.LastName,
		Email:      form.Email,
		Street:     form.Street,
		City:       form.City,
		PostalCode: form.PostalCode,
	}
	if form.RoomID > 0 {
		in.RoomID = uint64(form.RoomID)
	}
	if d, err := model.ParseDate(form.BirthDate); err == nil {
		in.BirthDate = d
	}
	return in
}

// Room validates a room insert payload.  The English keys number and
// capacity are accepted as aliases of cislo and kapacita.
func (v *Validator) Room(raw map[string]any) (model.RoomInput, error) {
	verr := apperrors.NewValidationError()
	raw = withAliases(raw, map[string]string{"number": "cislo", "capacity": "kapacita"})
	rejectUnknown(raw, verr, "cislo", "kapacita")
	requirePresent(raw, verr, "cislo", "kapacita")
	form := roomForm{
		Number:   intField(raw, "cislo", verr),
		Capacity: intField(raw, "kapacita", verr),
	}
	v.check(form, verr)
	return model.RoomInput{Number: int(form.Number), Capacity: int(form.Capacity)}, verr.OrNil()
}

// Transfer validates an update-room body {studentId, roomId}; id_ziak and
// id_izba are accepted as aliases.
func (v *Validator) Transfer(raw map[string]any) (studentID, roomID uint64, err error) {
	verr := apperrors.NewValidationError()
	raw = withAliases(raw, map[string]string{"id_ziak": "studentId", "id_izba": "roomId"})
	rejectUnknown(raw, verr, "studentId", "roomId")
	s := positiveInt(raw, "studentId", verr)
	r := positiveInt(raw, "roomId", verr)
	return uint64(s), uint64(r), verr.OrNil()
}

// Identifier validates a body carrying a single id under key or one of its
// aliases, as used by the delete endpoints.
func (v *Validator) Identifier(raw map[string]any, key string, aliases ...string) (uint64, error) {
	verr := apperrors.NewValidationError()
	alias := make(map[string]string, len(aliases))
	for _, a := range aliases {
		alias[a] = key
	}
	raw = withAliases(raw, alias)
	rejectUnknown(raw, verr, key)
	id := positiveInt(raw, key, verr)
	return uint64(id), verr.OrNil()
}

func (v *Validator) check(form any, verr *apperrors.ValidationError) {
	err := v.validate.Struct(form)
	if err == nil {
		return
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add("_", err.Error())
		return
	}
	for _, fe := range errs {
		verr.Add(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be a positive integer"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "notfuture":
		return "must not be in the future"
	case "personname":
		return "must start with an uppercase letter followed by lowercase letters"
	case "street":
		return "must look like \"Street name 12\" or \"Street name 12/3\""
	case "city":
		return "must start with an uppercase letter followed by lowercase letters"
	case "psc":
		return "must be in the form \"123 45\""
	default:
		return "is invalid"
	}
}

func rejectUnknown(raw map[string]any, verr *apperrors.ValidationError, allowed ...string) {
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	for k := range raw {
		if !ok[k] {
			verr.Add(k, "unknown field")
		}
	}
}

// withAliases copies raw, renaming alias keys to their canonical names.  A
// canonical key already present wins over its alias.
func withAliases(raw map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, val := range raw {
		if canon, ok := aliases[k]; ok {
			if _, exists := raw[canon]; exists {
				continue
			}
			out[canon] = val
			continue
		}
		out[k] = val
	}
	return out
}

func stringField(raw map[string]any, key string, verr *apperrors.ValidationError) string {
	val, ok := raw[key]
	if !ok || val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		verr.Add(key, "must be a string")
		return ""
	}
	return s
}

// intField coerces JSON numbers and numeric strings to an integer.  Values
// that are not whole numbers are reported and yield zero.
func intField(raw map[string]any, key string, verr *apperrors.ValidationError) int64 {
	val, ok := raw[key]
	if !ok || val == nil {
		return 0
	}
	var f float64
	switch t := val.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			verr.Add(key, "must be a positive integer")
			return 0
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			verr.Add(key, "must be a positive integer")
			return 0
		}
		f = n
	default:
		verr.Add(key, "must be a positive integer")
		return 0
	}
	if f != math.Trunc(f) || f > math.MaxInt32 {
		verr.Add(key, "must be a positive integer")
		return 0
	}
	return int64(f)
}

// requirePresent reports keys that are absent or null.  Integer fields use
// it instead of the required tag so that an explicit 0 is reported as
// "must be a positive integer".
func requirePresent(raw map[string]any, verr *apperrors.ValidationError, keys ...string) {
	for _, k := range keys {
		if val, ok := raw[k]; !ok || val == nil {
			verr.Add(k, "is required")
		}
	}
}

func positiveInt(raw map[string]any, key string, verr *apperrors.ValidationError) int64 {
	requirePresent(raw, verr, key)
	n := intField(raw, key, verr)
	if n <= 0 {
		verr.Add(key, "must be a positive integer")
		return 0
	}
	return n
}
