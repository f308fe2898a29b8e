package onboarding

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"trazio/internal/models"
	"trazio/internal/validation"

	"github.com/go-playground/validator/v10"
)

// draftFields maps json field names to OnboardingDraft field indexes.
var draftFields = func() map[string]int {
	m := make(map[string]int)
	t := reflect.TypeOf(models.OnboardingDraft{})
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		m[name] = i
	}
	return m
}()

// Submitter sends the finished draft to the backend.
type Submitter func(ctx context.Context, draft models.OnboardingDraft) (*models.User, error)

// Wizard holds one user's progress. It lives only in memory.
type Wizard struct {
	mu      sync.Mutex
	catalog *Catalog
	step    int
	draft   models.OnboardingDraft

	// submitting is set while a Submit request is in flight.
	submitting bool
}

// View is the wizard state shown to the browser.
type View struct {
	Step   Step                   `json:"step"`
	Index  int                    `json:"index"`
	Total  int                    `json:"total"`
	IsLast bool                   `json:"isLast"`
	Draft  models.OnboardingDraft `json:"draft"`
}

func NewWizard(c *Catalog) *Wizard {
	return &Wizard{catalog: c}
}

func (w *Wizard) steps() []Step {
	return w.catalog.Steps(w.draft.Role)
}

// View returns the current step and draft.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps()
	return View{
		Step:   steps[w.step],
		Index:  w.step,
		Total:  len(steps),
		IsLast: w.step == len(steps)-1,
		Draft:  w.draft,
	}
}

// Apply copies the current step's fields from patch into the draft. Fields
// of other steps are ignored.
func (w *Wizard) Apply(patch models.OnboardingDraft) {
	w.mu.Lock()
	defer w.mu.Unlock()
	src := reflect.ValueOf(patch)
	dst := reflect.ValueOf(&w.draft).Elem()
	for _, f := range w.steps()[w.step].Fields {
		i := draftFields[f.Name]
		dst.Field(i).Set(src.Field(i))
	}
}

// Next validates the current step and advances. It fails on the last step.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps()
	if w.step == len(steps)-1 {
		return models.NewValidationErrorFrom("Este es el último paso", models.ErrStepInvalid)
	}
	if err := w.validateLocked(steps[w.step]); err != nil {
		return err
	}
	w.step++
	return nil
}

// Back moves one step back without validating anything.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > 0 {
		w.step--
	}
}

// Submit validates the final step and sends the accumulated draft once.
// A Submit arriving while another is in flight is rejected without a request.
func (w *Wizard) Submit(ctx context.Context, submit Submitter) (*models.User, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, models.NewValidationErrorFrom("Tu perfil ya se está enviando", models.ErrSubmitInFlight)
	}
	steps := w.steps()
	if w.step != len(steps)-1 {
		w.mu.Unlock()
		return nil, models.NewValidationErrorFrom("Completa todos los pasos antes de enviar", models.ErrWizardIncomplete)
	}
	if err := w.validateLocked(steps[w.step]); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	draft := w.submissionLocked(steps)
	w.submitting = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()
	return submit(ctx, draft)
}

// submissionLocked keeps only the fields the role's steps ask for, so answers
// given before switching role are not sent.
func (w *Wizard) submissionLocked(steps []Step) models.OnboardingDraft {
	var out models.OnboardingDraft
	src := reflect.ValueOf(w.draft)
	dst := reflect.ValueOf(&out).Elem()
	for _, s := range steps {
		for _, f := range s.Fields {
			i := draftFields[f.Name]
			dst.Field(i).Set(src.Field(i))
		}
	}
	return out
}

func (w *Wizard) validateLocked(s Step) error {
	v := validation.Validator()
	draft := reflect.ValueOf(w.draft)
	for _, f := range s.Fields {
		if f.Rules == "" {
			continue
		}
		value := draft.Field(draftFields[f.Name]).Interface()
		if err := v.Var(value, f.Rules); err != nil {
			return models.NewValidationErrorFrom(fieldMessage(f, err), models.ErrStepInvalid)
		}
	}
	return nil
}

func fieldMessage(f Field, err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Sprintf("%s no es válido", f.Label)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s es obligatorio", f.Label)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Selecciona al menos %s en %s", fe.Param(), f.Label)
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s debe tener al menos %s caracteres", f.Label, fe.Param())
		}
		return fmt.Sprintf("%s debe ser al menos %s", f.Label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s no puede superar %s caracteres", f.Label, fe.Param())
		}
		return fmt.Sprintf("%s no puede superar %s", f.Label, fe.Param())
	case "oneof":
		return fmt.Sprintf("Elige una opción válida para %s", f.Label)
	case "username":
		if err := validation.ValidateUsername(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	case "url":
		return fmt.Sprintf("%s debe ser una URL válida", f.Label)
	}
	return fmt.Sprintf("%s no es válido", f.Label)
}
