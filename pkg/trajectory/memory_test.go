package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	t.Run("should start empty with a task id", func(t *testing.T) {
		m := NewMemory("open settings")

		assert.Equal(t, "open settings", m.TaskGoal())
		assert.NotEmpty(t, m.TaskID())
		assert.Equal(t, 0, m.Len())
		assert.Empty(t, m.HistoryImages(4))
	})

	t.Run("should index steps in append order", func(t *testing.T) {
		m := NewMemory("goal")
		m.AddStep(Step{Thinking: "first"})
		m.AddStep(Step{Thinking: "second"})

		steps := m.Steps()
		require.Len(t, steps, 2)
		assert.Equal(t, 0, steps[0].Index)
		assert.Equal(t, 1, steps[1].Index)
		assert.False(t, steps[0].Timestamp.IsZero())
	})

	t.Run("should return the last n entries oldest first", func(t *testing.T) {
		m := NewMemory("goal")
		for _, s := range []string{"a", "b", "c", "d", "e"} {
			m.AddStep(Step{Screenshot: "img-" + s, Thinking: "th-" + s})
		}

		assert.Equal(t, []string{"img-c", "img-d", "img-e"}, m.HistoryImages(3))
		assert.Equal(t, []string{"th-c", "th-d", "th-e"}, m.HistoryThoughts(3))
	})

	t.Run("should return everything when n exceeds length", func(t *testing.T) {
		m := NewMemory("goal")
		m.AddStep(Step{Screenshot: "only"})

		assert.Equal(t, []string{"only"}, m.HistoryImages(10))
	})

	t.Run("should return nothing for non positive n", func(t *testing.T) {
		m := NewMemory("goal")
		m.AddStep(Step{Screenshot: "x"})

		assert.Empty(t, m.HistoryImages(0))
		assert.Empty(t, m.HistoryThoughts(-1))
	})

	t.Run("should reset to a fresh task", func(t *testing.T) {
		m := NewMemory("old goal")
		m.AddStep(Step{Thinking: "stale"})
		oldID := m.TaskID()

		m.Reset("new goal")

		assert.Equal(t, "new goal", m.TaskGoal())
		assert.NotEqual(t, oldID, m.TaskID())
		assert.Equal(t, 0, m.Len())
	})

	t.Run("should copy steps on read", func(t *testing.T) {
		m := NewMemory("goal")
		m.AddStep(Step{Thinking: "original"})

		steps := m.Steps()
		steps[0].Thinking = "mutated"

		assert.Equal(t, "original", m.Steps()[0].Thinking)
	})
}

func TestArchiver(t *testing.T) {
	t.Run("should archive and list runs", func(t *testing.T) {
		a, err := NewArchiver(t.TempDir() + "/archive.db")
		require.NoError(t, err)
		defer a.Close()

		m := NewMemory("order coffee")
		m.AddStep(Step{Thinking: "open app", ActionJSON: `{"_metadata":"do","action":"Launch"}`, App: "coffee"})
		m.AddStep(Step{Thinking: "done", ActionJSON: `{"_metadata":"finish"}`})

		require.NoError(t, a.Archive(t.Context(), "emulator-5554", "glm", "completed", m))

		runs, err := a.RecentRuns(t.Context(), "emulator-5554", 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, m.TaskID(), runs[0].TaskID)
		assert.Equal(t, "order coffee", runs[0].Goal)
		assert.Equal(t, 2, runs[0].Steps)
		assert.Equal(t, "completed", runs[0].Status)
	})

	t.Run("should scope listing to the device", func(t *testing.T) {
		a, err := NewArchiver(t.TempDir() + "/archive.db")
		require.NoError(t, err)
		defer a.Close()

		m := NewMemory("goal")
		require.NoError(t, a.Archive(t.Context(), "device-a", "phone", "completed", m))

		runs, err := a.RecentRuns(t.Context(), "device-b", 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}
