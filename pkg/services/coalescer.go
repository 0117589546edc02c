package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/canvas-engine/pkg/adapters/metadata"
	"github.com/ekaya-inc/canvas-engine/pkg/models"
)

// Default debounce windows. Board edits settle faster than graph edits
// because dragging nodes fires canvas change events continuously.
const (
	DefaultBoardSaveDebounce = 600 * time.Millisecond
	DefaultGraphSaveDebounce = 800 * time.Millisecond
)

// BoardSnapshot is the full board/extras/active-id state written in one
// table-level override.
type BoardSnapshot struct {
	Boards        []models.BoardState
	Extras        map[string]models.GraphDocument
	ActiveBoardID string
}

// Coalescer batches and debounces writes to the Column Record Store:
// board snapshots at table level and per-column graph overrides. Writes are
// best effort; a failure is logged and local state stays authoritative,
// retried only on the next natural edit. Within one debounce window the
// last scheduled save wins.
type Coalescer struct {
	store   metadata.Store
	tableID string
	logger  *zap.Logger

	boardDelay time.Duration
	graphDelay time.Duration

	mu            sync.Mutex
	closed        bool
	lastBoardKey  string
	pendingBoard  *BoardSnapshot
	boardTimer    *time.Timer
	pendingGraphs map[string]models.GraphDocument
	graphTimer    *time.Timer

	// wg tracks in-flight flushes so Close and tests can wait for them.
	wg sync.WaitGroup
}

// NewCoalescer creates a coalescer for one table. Zero delays use the
// defaults.
func NewCoalescer(store metadata.Store, tableID string, boardDelay, graphDelay time.Duration, logger *zap.Logger) *Coalescer {
	if boardDelay <= 0 {
		boardDelay = DefaultBoardSaveDebounce
	}
	if graphDelay <= 0 {
		graphDelay = DefaultGraphSaveDebounce
	}
	return &Coalescer{
		store:         store,
		tableID:       tableID,
		logger:        logger.Named("coalescer"),
		boardDelay:    boardDelay,
		graphDelay:    graphDelay,
		pendingGraphs: make(map[string]models.GraphDocument),
	}
}

// ScheduleBoardSave records a board snapshot for saving. If the snapshot is
// unchanged since the last successful save nothing happens; otherwise the
// debounce timer is reset so the latest snapshot in the window is the one
// written.
func (c *Coalescer) ScheduleBoardSave(snapshot BoardSnapshot) {
	key := boardComparisonKey(snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || key == c.lastBoardKey {
		return
	}

	c.pendingBoard = &snapshot
	if c.boardTimer != nil {
		c.boardTimer.Stop()
	}
	c.boardTimer = time.AfterFunc(c.boardDelay, c.flushBoard)
}

// ScheduleGraphSave records a changed column graph for saving. Changed
// columns accumulate until the debounce timer fires, then all pending
// columns flush as one batch of independent requests.
func (c *Coalescer) ScheduleGraphSave(columnName string, doc models.GraphDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pendingGraphs[columnName] = doc
	if c.graphTimer != nil {
		c.graphTimer.Stop()
	}
	c.graphTimer = time.AfterFunc(c.graphDelay, c.flushGraphs)
}

// Close stops pending timers. In-flight flushes finish; their results are
// simply no longer consumed, matching the teardown model of the panel UI.
func (c *Coalescer) Close() {
	c.mu.Lock()
	c.closed = true
	if c.boardTimer != nil {
		c.boardTimer.Stop()
	}
	if c.graphTimer != nil {
		c.graphTimer.Stop()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// flushBoard writes the pending board snapshot.
func (c *Coalescer) flushBoard() {
	c.mu.Lock()
	snapshot := c.pendingBoard
	c.pendingBoard = nil
	c.mu.Unlock()
	if snapshot == nil {
		return
	}

	c.wg.Add(1)
	defer c.wg.Done()

	overrides := models.TableWorkflowOverrides{
		Boards:        snapshot.Boards,
		BoardExtras:   snapshot.Extras,
		ActiveBoardID: snapshot.ActiveBoardID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), metadata.DefaultTimeout)
	defer cancel()

	if err := c.store.OverrideTable(ctx, c.tableID, overrides.TableOverridePayload()); err != nil {
		c.logger.Warn("Board save failed - local state stays authoritative",
			zap.String("table_id", c.tableID),
			zap.Error(err))
		return
	}

	c.mu.Lock()
	c.lastBoardKey = boardComparisonKey(*snapshot)
	c.mu.Unlock()

	c.logger.Debug("Board snapshot saved",
		zap.String("table_id", c.tableID),
		zap.Int("boards", len(snapshot.Boards)))
}

// flushGraphs writes all pending column graphs as independent requests.
// One column's failure never cancels the others.
func (c *Coalescer) flushGraphs() {
	c.mu.Lock()
	pending := c.pendingGraphs
	c.pendingGraphs = make(map[string]models.GraphDocument)
	c.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	c.wg.Add(1)
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), metadata.DefaultTimeout)
	defer cancel()

	var flushWG sync.WaitGroup
	for columnName, doc := range pending {
		flushWG.Add(1)
		go func(columnName string, doc models.GraphDocument) {
			defer flushWG.Done()
			err := c.store.Override(ctx, c.tableID, columnName, map[string]any{
				"workflow_graph": doc,
			})
			if err != nil {
				c.logger.Warn("Column graph save failed",
					zap.String("table_id", c.tableID),
					zap.String("column", columnName),
					zap.Error(err))
			}
		}(columnName, doc)
	}
	flushWG.Wait()

	c.logger.Debug("Column graph batch flushed",
		zap.String("table_id", c.tableID),
		zap.Int("columns", len(pending)))
}

// boardComparisonKey serializes a snapshot for change detection. Marshal
// errors cannot occur for these types, so the key of an unmarshalable
// snapshot is simply never equal to a previous one.
func boardComparisonKey(snapshot BoardSnapshot) string {
	payload, err := json.Marshal(struct {
		Boards []models.BoardState             `json:"boards"`
		Extras map[string]models.GraphDocument `json:"extras"`
		Active string                          `json:"active"`
	}{snapshot.Boards, snapshot.Extras, snapshot.ActiveBoardID})
	if err != nil {
		return ""
	}
	return string(payload)
}
