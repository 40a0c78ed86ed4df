package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/storage/storagetest"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Len(t, c.Tasks, 9)
	assert.Len(t, c.Achievements, 12)
	for i, a := range c.Achievements {
		assert.Equal(t, i+1, a.SortOrder, a.Name)
	}
	assert.Equal(t, 4, c.Tasks[8].GoalDays)
	assert.Contains(t, c.Tasks[0].Psychoeducation, "habituation")
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	_, err := Parse([]byte(`[[achievements]]
name = "Moon"
criterion = "moonwalk"`))
	assert.ErrorContains(t, err, "unknown criterion")

	_, err = Parse([]byte(`[[tasks]]
week = 1
name = "a"
[[tasks]]
week = 1
name = "b"`))
	assert.ErrorContains(t, err, "defined twice")

	_, err = Parse([]byte(`tasks = 3`))
	assert.Error(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := storagetest.Open(t)
	c, err := Default()
	require.NoError(t, err)

	res, err := Apply(db, c)
	require.NoError(t, err)
	assert.Equal(t, Result{Tasks: 9, Achievements: 12}, res)

	var first models.Achievement
	require.NoError(t, db.Where("name = ?", "Comeback Kid").First(&first).Error)

	c.Tasks[0].Name = "The Front Door"
	_, err = Apply(db, c)
	require.NoError(t, err)

	var tasks, achievements int64
	db.Model(&models.Task{}).Count(&tasks)
	db.Model(&models.Achievement{}).Count(&achievements)
	assert.EqualValues(t, 9, tasks)
	assert.EqualValues(t, 12, achievements)

	var again models.Achievement
	require.NoError(t, db.Where("name = ?", "Comeback Kid").First(&again).Error)
	assert.Equal(t, first.ID, again.ID)

	var week1 models.Task
	require.NoError(t, db.Where("week_number = ?", 1).First(&week1).Error)
	assert.Equal(t, "The Front Door", week1.TaskName)
}
