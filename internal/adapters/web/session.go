package web

import (
	"container/list"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

const sessionCookie = "bolx_session"

type noticeLevel string

const (
	levelSuccess noticeLevel = "success"
	levelInfo    noticeLevel = "info"
	levelWarning noticeLevel = "warning"
	levelError   noticeLevel = "error"
)

type notice struct {
	Level noticeLevel
	Text  string
}

// Session is one browser's view of the setup and processing stages.
type Session struct {
	mu sync.Mutex

	SetupFile      *Upload
	SetupResult    *domain.DocumentExtract
	SelectedFields []string
	Instructions   string

	FinalConfig *domain.AgentConfig
	Configured  bool

	DeployResult *domain.DocumentExtract
	QAFileName   string
	Question     string
	Answer       string

	notices []notice
}

func (s *Session) flash(level noticeLevel, text string) {
	s.notices = append(s.notices, notice{Level: level, Text: text})
}

func (s *Session) takeNotices() []notice {
	out := s.notices
	s.notices = nil
	return out
}

// resetSetup starts over with a new sample document.
func (s *Session) resetSetup(file Upload) {
	s.SetupFile = &file
	s.SetupResult = nil
	s.SelectedFields = nil
	s.Instructions = ""
}

const (
	DefaultMaxSessions    = 512
	DefaultSessionIdleTTL = 2 * time.Hour
)

type sessionEntry struct {
	id       string
	sess     *Session
	lastSeen time.Time
}

// SessionStore keeps sessions in process memory; they do not survive a restart.
// Sessions idle longer than idleTTL are dropped, and past maxSessions the least
// recently used one is evicted. Zero disables either bound.
type SessionStore struct {
	mu          sync.Mutex
	maxSessions int
	idleTTL     time.Duration
	sessions    map[string]*list.Element
	order       *list.List
	now         func() time.Time
}

func NewSessionStore(maxSessions int, idleTTL time.Duration) *SessionStore {
	if maxSessions < 0 {
		maxSessions = 0
	}
	if idleTTL < 0 {
		idleTTL = 0
	}
	return &SessionStore{
		maxSessions: maxSessions,
		idleTTL:     idleTTL,
		sessions:    make(map[string]*list.Element),
		order:       list.New(),
		now:         time.Now,
	}
}

// Get returns the request's session, creating one and setting the cookie when absent.
func (s *SessionStore) Get(w http.ResponseWriter, r *http.Request) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)

	if c, err := r.Cookie(sessionCookie); err == nil {
		if elem, ok := s.sessions[c.Value]; ok {
			entry := elem.Value.(*sessionEntry)
			entry.lastSeen = now
			s.order.MoveToBack(elem)
			return entry.sess
		}
	}

	id := uuid.NewString()
	sess := &Session{}
	s.sessions[id] = s.order.PushBack(&sessionEntry{id: id, sess: sess, lastSeen: now})
	for s.maxSessions > 0 && s.order.Len() > s.maxSessions {
		s.remove(s.order.Front())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// expire drops idle sessions from the front; the list is ordered by last use.
func (s *SessionStore) expire(now time.Time) {
	if s.idleTTL == 0 {
		return
	}
	for elem := s.order.Front(); elem != nil; elem = s.order.Front() {
		if now.Sub(elem.Value.(*sessionEntry).lastSeen) < s.idleTTL {
			return
		}
		s.remove(elem)
	}
}

func (s *SessionStore) remove(elem *list.Element) {
	entry := elem.Value.(*sessionEntry)
	s.order.Remove(elem)
	delete(s.sessions, entry.id)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
