package fsops

// Deleter abstracts single-file removal
// Enables mocking in tests to prove dry-run never deletes
type Deleter interface {
	Remove(path string) error
}
