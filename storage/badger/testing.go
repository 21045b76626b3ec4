package badger

// NewMemoryBackend opens an in-memory backend for testing.
func NewMemoryBackend() (*Backend, error) {
	return OpenBackend("", true)
}

// NewMemoryRepositories creates the full repository set on a shared
// in-memory backend. Intended for tests.
func NewMemoryRepositories() (*StateRepository, *RetryRepository, *VoteRepository, *ArchiveRepository, *Backend, error) {
	backend, err := NewMemoryBackend()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	state, err := NewStateRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, nil, err
	}
	archive, err := NewArchiveRepository(backend)
	if err != nil {
		state.Close()
		backend.Close()
		return nil, nil, nil, nil, nil, err
	}
	return state, NewRetryRepository(backend), NewVoteRepository(backend), archive, backend, nil
}
