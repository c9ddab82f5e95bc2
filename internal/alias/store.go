// Package alias implements the per-session identity alias map (§4.2),
// a bidirectional cache between @lid pseudonyms and @s.whatsapp.net phone JIDs.
package alias

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"waworker/pkg/logger"
)

const (
	suffixLID = "@lid"
	suffixPN  = "@s.whatsapp.net"
)

// Map is the on-disk shape of identity-alias-map.json.
type Map struct {
	LIDToPN map[string]string `json:"lid_to_pn"`
	PNToLID map[string]string `json:"pn_to_lid"`
}

// Store is a lazily-loaded, file-backed identity alias map for one session.
// Loads happen on first use; writes are whole-file atomic rewrites.
type Store struct {
	path string
	log  logger.Logger

	mu     sync.Mutex
	loaded bool
	data   Map
}

// New returns a Store for the alias map at path; nothing is read until first use.
func New(path string, log logger.Logger) *Store {
	return &Store{
		path: path,
		log:  log.WithComponent("identity-alias-store"),
		data: Map{LIDToPN: map[string]string{}, PNToLID: map[string]string{}},
	}
}

func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return // absent file is a fresh, empty map; not an error
	}
	var m Map
	if err := json.Unmarshal(raw, &m); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("identity alias map corrupt, starting fresh")
		return
	}
	if m.LIDToPN == nil {
		m.LIDToPN = map[string]string{}
	}
	if m.PNToLID == nil {
		m.PNToLID = map[string]string{}
	}
	s.data = m
}

// RememberPair records an observed @lid/@s.whatsapp.net pair for both
// directions, persisting only when something actually changed.
func (s *Store) RememberPair(lid, pn string) (changed bool, err error) {
	if lid == "" || pn == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if s.data.LIDToPN[lid] == pn && s.data.PNToLID[pn] == lid {
		return false, nil
	}
	s.data.LIDToPN[lid] = pn
	s.data.PNToLID[pn] = lid

	if err := s.save(); err != nil {
		return false, err
	}
	return true, nil
}

// ResolveCanonical returns the canonical @s.whatsapp.net identity for jid:
// the fallback if it is already a phone JID, the mapped phone JID if jid is
// a known @lid, or jid unchanged otherwise.
func (s *Store) ResolveCanonical(jid, fallbackPN string) string {
	if strings.HasSuffix(fallbackPN, suffixPN) {
		return fallbackPN
	}
	if strings.HasSuffix(jid, suffixLID) {
		s.mu.Lock()
		s.ensureLoaded()
		pn, ok := s.data.LIDToPN[jid]
		s.mu.Unlock()
		if ok {
			return pn
		}
	}
	return jid
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".alias-map-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}
