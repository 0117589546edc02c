package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/runner"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// ColumnEstimate is one column's token estimate, or its failure. Partial
// success across a batch is valid and surfaced per column.
type ColumnEstimate struct {
	Column   string                   `json:"column"`
	Estimate *runner.EstimateResponse `json:"estimate,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// ColumnRunResult is one column's run outcome, or its failure.
type ColumnRunResult struct {
	Column string              `json:"column"`
	Run    *runner.RunResponse `json:"run,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// RunService issues estimate/run requests for batches of columns. Requests
// for different columns go out concurrently and fail independently; a
// column's failure never cancels the rest of the batch.
type RunService struct {
	backend runner.Backend
	panel   *Panel
	logger  *zap.Logger
}

// NewRunService creates a run service bound to one panel.
func NewRunService(backend runner.Backend, panel *Panel, logger *zap.Logger) *RunService {
	return &RunService{
		backend: backend,
		panel:   panel,
		logger:  logger.Named("runs"),
	}
}

// EstimateColumns fetches token estimates for the given columns.
func (s *RunService) EstimateColumns(ctx context.Context, columns []string) []ColumnEstimate {
	results := make([]ColumnEstimate, len(columns))

	var wg sync.WaitGroup
	for i, columnName := range columns {
		wg.Add(1)
		go func(i int, columnName string) {
			defer wg.Done()
			estimate, err := s.backend.Estimate(ctx, s.panel.TableID(), columnName)
			if err != nil {
				s.logger.Warn("Estimate failed",
					zap.String("column", columnName),
					zap.Error(err))
				results[i] = ColumnEstimate{Column: columnName, Error: err.Error()}
				return
			}
			results[i] = ColumnEstimate{Column: columnName, Estimate: estimate}
		}(i, columnName)
	}
	wg.Wait()

	return results
}

// RunColumns executes the workflows of the given columns. Node statuses on
// the panel track each run: running while in flight, then success or error.
func (s *RunService) RunColumns(ctx context.Context, columns []string, opts runner.RunOptions) []ColumnRunResult {
	results := make([]ColumnRunResult, len(columns))

	var wg sync.WaitGroup
	for i, columnName := range columns {
		wg.Add(1)
		go func(i int, columnName string) {
			defer wg.Done()
			s.panel.SetColumnStatus(columnName, models.NodeStatusRunning)

			run, err := s.backend.Run(ctx, s.panel.TableID(), columnName, opts)
			if err != nil {
				s.logger.Warn("Run failed",
					zap.String("column", columnName),
					zap.Error(err))
				s.panel.SetColumnStatus(columnName, models.NodeStatusError)
				results[i] = ColumnRunResult{Column: columnName, Error: err.Error()}
				return
			}

			s.panel.SetColumnStatus(columnName, models.NodeStatusSuccess)
			results[i] = ColumnRunResult{Column: columnName, Run: run}
		}(i, columnName)
	}
	wg.Wait()

	return results
}

// RunSelectedToolCalls re-executes a subset of one column's recorded tool
// calls.
func (s *RunService) RunSelectedToolCalls(ctx context.Context, columnName string, toolCalls []runner.ToolCall, opts runner.RunOptions) (*runner.RunResponse, error) {
	return s.backend.RunSelected(ctx, s.panel.TableID(), columnName, toolCalls, opts)
}
