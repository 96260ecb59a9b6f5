package search

import (
	"context"
	"log"
)

// Service is the facade the board talks to. Without a healthy Meilisearch it
// drops index writes and reports ErrUnavailable on reads.
type Service struct {
	meili *Meili
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili) *Service {
	return &Service{meili: meili}
}

func (s *Service) available() bool {
	return s != nil && s.meili != nil && s.meili.Healthy()
}

func (s *Service) SearchTasks(_ context.Context, q Query) ([]string, error) {
	if !s.available() {
		return nil, ErrUnavailable
	}
	return s.meili.Search(q)
}

// IndexTasks indexes tasks (fire-and-forget to Meilisearch).
func (s *Service) IndexTasks(tasks []TaskDocument) {
	if !s.available() || len(tasks) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexTasks(tasks); err != nil {
			log.Printf("search: index %d tasks: %v", len(tasks), err)
		}
	}()
}

// RemoveTasks removes tasks from the index (fire-and-forget).
func (s *Service) RemoveTasks(ids []string) {
	if !s.available() || len(ids) == 0 {
		return
	}
	go func() {
		for _, id := range ids {
			if err := s.meili.DeleteTask(id); err != nil {
				log.Printf("search: delete task %s: %v", id, err)
			}
		}
	}()
}
