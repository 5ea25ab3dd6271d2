package interfaces

// Repository defines the interface for data persistence. Every store method
// is scoped by user ID; no call can read or write another user's data.
type Repository interface {
	MemoryItem() MemoryItemRepository
	Task() TaskRepository
	List() ListRepository
	Session() SessionRepository
	Execution() ExecutionRepository

	Close() error
}
