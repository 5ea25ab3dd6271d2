package memory

import (
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
)

// Memory is an in-memory Repository implementation for development and tests
type Memory struct {
	memoryItem *memoryItemRepository
	task       *taskRepository
	list       *listRepository
	session    *sessionRepository
	execution  *executionRepository
}

var _ interfaces.Repository = &Memory{}

// New creates an empty in-memory repository
func New() *Memory {
	return &Memory{
		memoryItem: newMemoryItemRepository(),
		task:       newTaskRepository(),
		list:       newListRepository(),
		session:    newSessionRepository(),
		execution:  newExecutionRepository(),
	}
}

func (m *Memory) MemoryItem() interfaces.MemoryItemRepository {
	return m.memoryItem
}

func (m *Memory) Task() interfaces.TaskRepository {
	return m.task
}

func (m *Memory) List() interfaces.ListRepository {
	return m.list
}

func (m *Memory) Session() interfaces.SessionRepository {
	return m.session
}

func (m *Memory) Execution() interfaces.ExecutionRepository {
	return m.execution
}

func (m *Memory) Close() error {
	return nil
}
