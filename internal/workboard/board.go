package workboard

import (
	"context"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/worker"
)

// LocalBoard is the worker.Board of runners living in the server process.
type LocalBoard struct {
	workers *WorkerService
}

var _ worker.Board = (*LocalBoard)(nil)

// NewLocalBoard returns a board backed by svc.
func NewLocalBoard(svc *WorkerService) *LocalBoard {
	return &LocalBoard{workers: svc}
}

func (b *LocalBoard) Work(ctx context.Context, name, role string) (worker.Work, error) {
	return b.workers.Work(ctx, name, role)
}

func (b *LocalBoard) Report(ctx context.Context, r worker.Report) error {
	_, err := b.workers.Report(ctx, r)
	return err
}

func (b *LocalBoard) SetTaskStatus(ctx context.Context, source string, status backlog.TaskStatus) error {
	return b.workers.SetTaskStatus(ctx, source, status)
}

func (b *LocalBoard) ReadFile(ctx context.Context, source string) (string, error) {
	return b.workers.backlog.ReadFile(ctx, source)
}
