package blob

import (
	"sync"

	"github.com/google/uuid"
)

// StageScheme prefixes photo URIs that point into the staging area rather
// than durable storage.
const StageScheme = "stage://"

// Staged is one photo awaiting submission.
type Staged struct {
	ContentType string
	Data        []byte
}

// Stage holds photo bytes between capture and submission, keyed per
// session. Upload to durable storage happens at submit time, all or
// nothing, so until then the bytes live here.
type Stage struct {
	mu      sync.Mutex
	entries map[string]map[string]Staged
}

func NewStage() *Stage {
	return &Stage{entries: make(map[string]map[string]Staged)}
}

// Put stores photo bytes for a session and returns the staging key.
func (s *Stage) Put(sessionID, contentType string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := uuid.NewString()
	if s.entries[sessionID] == nil {
		s.entries[sessionID] = make(map[string]Staged)
	}
	s.entries[sessionID][key] = Staged{
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	}
	return key
}

// Get returns a staged photo.
func (s *Stage) Get(sessionID, key string) (Staged, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, ok := s.entries[sessionID][key]
	return staged, ok
}

// Remove drops one staged photo.
func (s *Stage) Remove(sessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[sessionID], key)
	if len(s.entries[sessionID]) == 0 {
		delete(s.entries, sessionID)
	}
}

// Count reports how many photos a session has staged.
func (s *Stage) Count(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[sessionID])
}

// DropSession discards everything staged for a session.
func (s *Stage) DropSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}
