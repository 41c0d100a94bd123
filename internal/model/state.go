package model

import (
	"encoding/json"
	"sort"
)

// Bookmark is the persisted progress marker of one stream.
type Bookmark struct {
	StartDate string `json:"start_date"`
}

// State maps stream names to bookmarks. It is owned by the running sync and
// mutated only between windows.
type State struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Bookmarks: make(map[string]Bookmark)}
}

// UnmarshalJSON accepts both {"bookmarks": {...}} and a bare stream mapping.
func (s *State) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Bookmarks map[string]Bookmark `json:"bookmarks"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Bookmarks != nil {
		s.Bookmarks = wrapped.Bookmarks
		return nil
	}
	var bare map[string]Bookmark
	if err := json.Unmarshal(data, &bare); err != nil {
		return err
	}
	if bare == nil {
		bare = make(map[string]Bookmark)
	}
	s.Bookmarks = bare
	return nil
}

// StartDate returns the stored checkpoint of a stream.
func (s *State) StartDate(stream string) (string, bool) {
	b, ok := s.Bookmarks[stream]
	if !ok || b.StartDate == "" {
		return "", false
	}
	return b.StartDate, true
}

// SetStartDate overwrites the checkpoint of a stream.
func (s *State) SetStartDate(stream, value string) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]Bookmark)
	}
	b := s.Bookmarks[stream]
	b.StartDate = value
	s.Bookmarks[stream] = b
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := NewState()
	for k, v := range s.Bookmarks {
		out.Bookmarks[k] = v
	}
	return out
}

// Streams lists the streams with a bookmark, sorted.
func (s *State) Streams() []string {
	names := make([]string, 0, len(s.Bookmarks))
	for k := range s.Bookmarks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
