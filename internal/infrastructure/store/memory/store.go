package memory

import (
	"container/list"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

// Store keeps documents and the agent configuration in process memory.
// With maxDocuments > 0 the least recently written document is evicted first.
type Store struct {
	mu           sync.Mutex
	maxDocuments int
	docs         map[string]*list.Element
	order        *list.List
	agentConfig  domain.AgentConfig
}

func New(maxDocuments int) *Store {
	if maxDocuments < 0 {
		maxDocuments = 0
	}
	return &Store{
		maxDocuments: maxDocuments,
		docs:         make(map[string]*list.Element),
		order:        list.New(),
		agentConfig:  domain.NewAgentConfig(nil, ""),
	}
}

func (s *Store) Put(_ context.Context, doc domain.StoredDocument) error {
	doc.Content = slices.Clone(doc.Content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.docs[doc.FileName]; ok {
		elem.Value = doc
		s.order.MoveToBack(elem)
		return nil
	}

	s.docs[doc.FileName] = s.order.PushBack(doc)
	for s.maxDocuments > 0 && s.order.Len() > s.maxDocuments {
		oldest := s.order.Front()
		evicted := oldest.Value.(domain.StoredDocument)
		s.order.Remove(oldest)
		delete(s.docs, evicted.FileName)
	}
	return nil
}

func (s *Store) Get(_ context.Context, fileName string) (*domain.StoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.docs[fileName]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "memory get", fmt.Errorf("file_name=%s", fileName))
	}
	doc := elem.Value.(domain.StoredDocument)
	doc.Content = slices.Clone(doc.Content)
	return &doc, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *Store) SaveAgentConfig(_ context.Context, cfg domain.AgentConfig) error {
	cfg.FieldsToExtract = cloneFields(cfg.FieldsToExtract)

	s.mu.Lock()
	s.agentConfig = cfg
	s.mu.Unlock()
	return nil
}

func (s *Store) LoadAgentConfig(context.Context) (domain.AgentConfig, error) {
	s.mu.Lock()
	cfg := s.agentConfig
	s.mu.Unlock()

	cfg.FieldsToExtract = cloneFields(cfg.FieldsToExtract)
	return cfg, nil
}

func cloneFields(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return slices.Clone(fields)
}
