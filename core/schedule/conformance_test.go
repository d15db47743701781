package schedule_test

import (
	"testing"

	"github.com/kilianp07/soh/core/schedule"
	"github.com/kilianp07/soh/core/schedule/schedtest"
)

func TestMemoryRepositoryConformance(t *testing.T) {
	schedtest.Run(t, func(*testing.T) schedule.Repository { return schedule.NewMemoryRepository() })
}
