package workflow

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/insanalamin/mechaway/internal/core"
)

// Validator applies struct-tag validation to incoming workflow definitions,
// plus a custom "cron" rule for Cron node schedules that tags alone can't
// express since a node's schedule lives in its untyped Params map.
type Validator struct {
	v    *validator.Validate
	once sync.Once
}

// NewValidator creates a Validator. Safe for concurrent use once built.
func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

func (val *Validator) init() {
	val.once.Do(func() {
		_ = val.v.RegisterValidation("cron", validateCronExpr)
	})
}

func validateCronExpr(fl validator.FieldLevel) bool {
	expr := fl.Field().String()
	if expr == "" {
		return false
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(expr)
	return err == nil
}

type cronSchedule struct {
	Schedule string `validate:"required,cron"`
}

// Validate checks wf's struct-level invariants (required id/name, required
// node id/type, required edge endpoints) and, for every Cron node, that its
// "schedule" parameter is present and parses as a valid cron expression.
func (val *Validator) Validate(wf Workflow) error {
	val.init()
	if err := val.v.Struct(wf); err != nil {
		return core.ValidationError(err.Error())
	}
	for _, node := range wf.Nodes {
		if node.Type != NodeCron {
			continue
		}
		schedule, _ := node.Params["schedule"].(string)
		if err := val.v.Struct(cronSchedule{Schedule: schedule}); err != nil {
			return core.ValidationError("Cron node " + node.ID + " has an invalid or missing schedule: " + err.Error())
		}
	}
	return nil
}
