package chat

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sabio/insight-dash/pkg/metrics"
)

// Session owns the ordered transcript. Entries are append-only; Reset is the
// only way to drop them.
type Session struct {
	entries    []Entry
	totalChars int
	observers  []func(Entry)
	onReset    []func()
	mu         sync.RWMutex
}

// Stats holds transcript statistics.
type Stats struct {
	EntryCount int `json:"entry_count"`
	PlotCount  int `json:"plot_count"`
	TotalChars int `json:"total_chars"`
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		entries: make([]Entry, 0),
	}
}

// AppendUserMessage appends a user text entry. Whitespace-only text is
// rejected with ErrEmptyInput and nothing is appended.
func (s *Session) AppendUserMessage(text string) (Entry, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, ErrEmptyInput
	}
	return s.append(Entry{Role: RoleUser, Kind: KindText, Text: text}), nil
}

// AppendReply appends the bot entry for a successful reply. A plot without
// image data is recorded as an error entry.
func (s *Session) AppendReply(r Reply) Entry {
	switch v := r.(type) {
	case PlotReply:
		if v.Image == "" {
			return s.AppendError(errMissingPlotImage.Error())
		}
		caption := v.Caption
		if caption == "" {
			caption = PlotCaption
		}
		return s.append(Entry{Role: RoleBot, Kind: KindPlot, Text: caption, Image: v.Image})
	case TextReply:
		return s.append(Entry{Role: RoleBot, Kind: KindText, Text: v.Answer})
	}
	return s.append(Entry{Role: RoleBot, Kind: KindText})
}

// AppendError appends a bot entry describing a failed chat request.
func (s *Session) AppendError(detail string) Entry {
	return s.append(Entry{Role: RoleBot, Kind: KindText, Text: ErrorPrefix + detail})
}

// Reset empties the transcript and appends the greeting.
func (s *Session) Reset() Entry {
	s.mu.Lock()
	s.entries = make([]Entry, 0)
	s.totalChars = 0
	hooks := append([]func(){}, s.onReset...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return s.append(Entry{Role: RoleBot, Kind: KindText, Text: GreetingText})
}

// Entries returns a copy of the transcript in arrival order.
func (s *Session) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, len(s.entries))
	copy(result, s.entries)
	return result
}

// Len returns the number of entries.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Last returns the newest entry.
func (s *Session) Last() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Stats returns transcript statistics.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{EntryCount: len(s.entries), TotalChars: s.totalChars}
	for _, e := range s.entries {
		if e.Kind == KindPlot {
			st.PlotCount++
		}
	}
	return st
}

// Subscribe registers fn for every appended entry.
func (s *Session) Subscribe(fn func(Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// OnReset registers fn to run when the transcript is cleared, before the
// greeting is appended.
func (s *Session) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReset = append(s.onReset, fn)
}

func (s *Session) append(e Entry) Entry {
	e.ID = uuid.NewString()

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.totalChars += len(e.Text)
	observers := append([]func(Entry){}, s.observers...)
	s.mu.Unlock()

	metrics.ChatEntries.WithLabelValues(string(e.Role), string(e.Kind)).Inc()
	for _, fn := range observers {
		fn(e)
	}
	return e
}
