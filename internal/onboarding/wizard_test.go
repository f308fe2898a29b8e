package onboarding

import (
	"context"
	"testing"

	"trazio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWizard(t *testing.T) *Wizard {
	t.Helper()
	c, err := LoadCatalog()
	require.NoError(t, err)
	return NewWizard(c)
}

func studentAnswers() models.OnboardingDraft {
	return models.OnboardingDraft{
		Role:       models.RoleStudent,
		FirstName:  "Ana",
		LastName:   "García",
		Username:   "ana.garcia",
		University: "UNAM",
		Career:     "Ingeniería de Sistemas",
		Semester:   3,
		Subjects:   []string{"s1"},
		Interests:  []string{"datos"},
		Bio:        "Me gustan las bases de datos",
	}
}

func teacherAnswers() models.OnboardingDraft {
	return models.OnboardingDraft{
		Role:       models.RoleTeacher,
		FirstName:  "Luis",
		LastName:   "Pérez",
		Username:   "lperez",
		University: "UNAM",
		Department: "Computación",
		Subjects:   []string{"s1", "s2"},
	}
}

// walk applies answers to every step and advances to the last one.
func walk(t *testing.T, w *Wizard, answers models.OnboardingDraft) {
	t.Helper()
	for !w.View().IsLast {
		w.Apply(answers)
		require.NoError(t, w.Next(), w.View().Step.ID)
	}
	w.Apply(answers)
}

func TestCatalog_StepCounts(t *testing.T) {
	t.Parallel()
	c, err := LoadCatalog()
	require.NoError(t, err)

	assert.Len(t, c.Steps(models.RoleStudent), 10)
	assert.Len(t, c.Steps(models.RoleTeacher), 6)
	assert.Equal(t, "role", c.Steps(models.RoleStudent)[0].ID)
	assert.Equal(t, "role", c.Steps(models.RoleTeacher)[0].ID)
}

func TestParseCatalog_RejectsUnknownField(t *testing.T) {
	t.Parallel()
	_, err := ParseCatalog([]byte(`
role_step: {id: role, fields: [{name: role}]}
student: [{id: x, fields: [{name: shoeSize}]}]
teacher: [{id: y, fields: [{name: bio}]}]
`))
	assert.Error(t, err)
}

func TestWizard_NextRequiresValidStep(t *testing.T) {
	t.Parallel()
	w := newWizard(t)

	err := w.Next()
	assert.ErrorIs(t, err, models.ErrStepInvalid)
	assert.Equal(t, 0, w.View().Index)

	w.Apply(models.OnboardingDraft{Role: "admin"})
	assert.ErrorIs(t, w.Next(), models.ErrStepInvalid)

	w.Apply(models.OnboardingDraft{Role: models.RoleTeacher})
	require.NoError(t, w.Next())
	assert.Equal(t, 1, w.View().Index)
	assert.Equal(t, 6, w.View().Total)
}

func TestWizard_ApplyOnlyTouchesCurrentStep(t *testing.T) {
	t.Parallel()
	w := newWizard(t)
	w.Apply(models.OnboardingDraft{Role: models.RoleStudent, Bio: "ignored"})
	assert.Equal(t, models.RoleStudent, w.View().Draft.Role)
	assert.Empty(t, w.View().Draft.Bio)
}

func TestWizard_BackIsUnrestricted(t *testing.T) {
	t.Parallel()
	w := newWizard(t)
	w.Apply(studentAnswers())
	require.NoError(t, w.Next())
	w.Apply(studentAnswers())
	require.NoError(t, w.Next())
	assert.Equal(t, 2, w.View().Index)

	// The current step is invalid, going back still works.
	w.Apply(models.OnboardingDraft{Username: "!"})
	w.Back()
	w.Back()
	w.Back()
	assert.Equal(t, 0, w.View().Index)
}

func TestWizard_SubmitOnlyAtFinalStep(t *testing.T) {
	t.Parallel()
	w := newWizard(t)
	called := false
	submit := func(context.Context, models.OnboardingDraft) (*models.User, error) {
		called = true
		return &models.User{}, nil
	}

	_, err := w.Submit(context.Background(), submit)
	assert.ErrorIs(t, err, models.ErrWizardIncomplete)
	assert.False(t, called)
}

func TestWizard_StudentFlowSubmitsOnce(t *testing.T) {
	t.Parallel()
	w := newWizard(t)
	walk(t, w, studentAnswers())
	assert.Equal(t, 9, w.View().Index)
	assert.ErrorIs(t, w.Next(), models.ErrStepInvalid)

	var submitted []models.OnboardingDraft
	u, err := w.Submit(context.Background(), func(_ context.Context, d models.OnboardingDraft) (*models.User, error) {
		submitted = append(submitted, d)
		return &models.User{ID: "u1", Role: d.Role, ProfileCompleted: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, u.ProfileCompleted)
	require.Len(t, submitted, 1)
	assert.Equal(t, studentAnswers(), submitted[0])
}

func TestWizard_ConcurrentSubmitSendsOneRequest(t *testing.T) {
	t.Parallel()
	w := newWizard(t)
	walk(t, w, teacherAnswers())

	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	submit := func(_ context.Context, d models.OnboardingDraft) (*models.User, error) {
		calls++
		close(started)
		<-release
		return &models.User{ID: "u1", Role: d.Role, ProfileCompleted: true}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), submit)
		done <- err
	}()
	<-started

	_, err := w.Submit(context.Background(), submit)
	assert.ErrorIs(t, err, models.ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)

	// Once settled, a failed or repeated submit may be retried.
	_, err = w.Submit(context.Background(), func(_ context.Context, d models.OnboardingDraft) (*models.User, error) {
		return &models.User{ID: "u1", Role: d.Role}, nil
	})
	assert.NoError(t, err)
}

func TestWizard_TeacherFlowDropsStudentAnswers(t *testing.T) {
	t.Parallel()
	w := newWizard(t)

	// Start as a student, go back, switch to teacher.
	w.Apply(studentAnswers())
	require.NoError(t, w.Next())
	w.Apply(studentAnswers())
	require.NoError(t, w.Next())
	w.Back()
	w.Back()
	walk(t, w, teacherAnswers())
	assert.Equal(t, 5, w.View().Index)

	var got models.OnboardingDraft
	_, err := w.Submit(context.Background(), func(_ context.Context, d models.OnboardingDraft) (*models.User, error) {
		got = d
		return &models.User{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, got.Role)
	assert.Equal(t, "Luis", got.FirstName)
	assert.Empty(t, got.Career)
	assert.Zero(t, got.Semester)
}

func TestWizard_StepMessages(t *testing.T) {
	t.Parallel()
	w := newWizard(t)
	w.Apply(studentAnswers())
	require.NoError(t, w.Next())

	w.Apply(models.OnboardingDraft{FirstName: "A", LastName: "García"})
	err := w.Next()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Nombre debe tener al menos 2 caracteres", appErr.Message)
}
