package app

import (
	"context"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// ListOpenTasks returns open tasks, optionally limited to those due on
// or before a date.
func (s *Service) ListOpenTasks(ctx context.Context, dueBefore *time.Time) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.ListTasks(ctx, TaskFilter{
		Statuses:  []domain.TaskStatus{domain.TaskOpen},
		DueBefore: dueBefore,
	})
}

// CompleteTask marks an open task done.
func (s *Service) CompleteTask(ctx context.Context, id string) (domain.Task, error) {
	return s.transitionTask(ctx, id, domain.TaskDone)
}

// DismissTask marks an open task dismissed.
func (s *Service) DismissTask(ctx context.Context, id string) (domain.Task, error) {
	return s.transitionTask(ctx, id, domain.TaskDismissed)
}

func (s *Service) transitionTask(ctx context.Context, id string, to domain.TaskStatus) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	task, err = task.Transition(to, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}
