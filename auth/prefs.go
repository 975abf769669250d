package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Prefs is the persisted remember-me state. When RememberMe is off, or the
// saved uid no longer matches the restored session, the session is not
// restored and the user signs in again.
type Prefs struct {
	RememberMe bool   `json:"remember_me"`
	SavedUID   string `json:"saved_uid"`
}

// PrefsStore persists Prefs as a JSON file next to the app data.
type PrefsStore struct {
	path string
	mu   sync.Mutex
}

func NewPrefsStore(path string) *PrefsStore {
	return &PrefsStore{path: path}
}

// Load reads the stored prefs. A missing file means default prefs.
func (s *PrefsStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *PrefsStore) loadLocked() (Prefs, error) {
	var p Prefs
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prefs{}, err
	}
	return p, nil
}

// Save writes the prefs atomically: write to a temp file, then rename.
func (s *PrefsStore) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(p)
}

func (s *PrefsStore) saveLocked(p Prefs) error {
	raw, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Remember records that uid's session should be restored on the next start.
func (s *PrefsStore) Remember(uid string) error {
	return s.Save(Prefs{RememberMe: true, SavedUID: uid})
}

// Forget clears the remembered session.
func (s *PrefsStore) Forget() error {
	return s.Save(Prefs{})
}

// RestoreSession decides whether a restored session for uid may continue.
// A mismatch between the restored uid and the saved one forces a sign-out
// and clears the stale preference.
func (s *PrefsStore) RestoreSession(uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	if !p.RememberMe {
		return false, nil
	}
	if p.SavedUID != uid {
		if err := s.saveLocked(Prefs{}); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}
