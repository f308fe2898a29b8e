package featureflags

import (
	"testing"

	"trazio/internal/models"

	"github.com/stretchr/testify/assert"
)

var student = &models.User{ID: "u42", Role: models.RoleStudent}

func TestEnabled_BooleanValues(t *testing.T) {
	t.Parallel()
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, student), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, student), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	t.Parallel()
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", student))
	assert.False(t, m.Enabled("never", student))

	first := m.Enabled("canary", student)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", student), "rollout evaluation must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", nil), "percentage rollout requires a user")
}

func TestEnabled_RoleValues(t *testing.T) {
	t.Parallel()
	m := NewManager("highlights=role:teacher")

	assert.True(t, m.Enabled(Highlights, &models.User{ID: "t1", Role: models.RoleTeacher}))
	assert.False(t, m.Enabled(Highlights, student))
	assert.False(t, m.Enabled(Highlights, nil))
}

func TestParseAndSnapshot(t *testing.T) {
	t.Parallel()
	m := NewManager(" bad ,x=on, y = 100% ,z=off ")

	assert.Equal(t, map[string]string{"x": "on", "y": "100%", "z": "off"}, m.Raw())
	assert.Equal(t, map[string]bool{"x": true, "y": true, "z": false}, m.Snapshot(student))
}

func TestNilManager(t *testing.T) {
	t.Parallel()
	var m *Manager
	assert.False(t, m.Enabled(VideoUploads, student))
}
