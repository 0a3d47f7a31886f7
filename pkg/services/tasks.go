package services

import (
	"context"
	"strings"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/metrics"
	"collab-tracker-backend/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskService stores task rows whose shape follows the project's columns.
// Cell edits are read-modify-write on the whole data map guarded by the
// task version, so a concurrent edit surfaces as a conflict instead of
// being silently overwritten.
type TaskService struct {
	base
	columns *ColumnRegistry
}

func NewTaskService(store database.DatabaseInterface, columns *ColumnRegistry, opts ...Option) *TaskService {
	return &TaskService{base: newBase(store, opts), columns: columns}
}

func columnIndex(cols []models.Column) map[string]models.Column {
	idx := make(map[string]models.Column, len(cols))
	for _, c := range cols {
		idx[c.ID] = c
	}
	return idx
}

// Create stores a new task. A nil initialData yields a blank value for every
// visible column. Keys no column declares are stored unchanged.
func (s *TaskService) Create(ctx context.Context, actor models.Actor, projectID string, initialData models.TaskData) (*models.Task, error) {
	if _, _, err := s.authorize(ctx, actor, projectID, models.RoleMember); err != nil {
		return nil, err
	}
	cols, _, err := s.columns.effective(ctx, projectID)
	if err != nil {
		return nil, err
	}

	data := initialData.Clone()
	if initialData == nil {
		data = models.BlankTaskData(cols)
	}
	known := columnIndex(cols)
	for key, v := range data {
		if c, ok := known[key]; ok {
			if err := ValidateValue(c, v); err != nil {
				return nil, err
			}
		}
	}

	now := s.now()
	t := &models.Task{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Data:      data,
		CreatedBy: actor.UserID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, apperrors.Store("create task", err)
	}
	return t, nil
}

// UpdateCell replaces one key of the task data. expectedVersion is the
// version the caller last saw; 0 means "whatever is current now". A stale
// version fails with a conflict and the caller must re-read.
func (s *TaskService) UpdateCell(ctx context.Context, actor models.Actor, taskID, columnID string, value interface{}, expectedVersion int64) (*models.Task, error) {
	columnID = strings.TrimSpace(columnID)
	if columnID == "" {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "column id is required")
	}
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, apperrors.Store("get task", err)
	}
	if _, _, err := s.authorize(ctx, actor, t.ProjectID, models.RoleMember); err != nil {
		return nil, err
	}

	cols, _, err := s.columns.effective(ctx, t.ProjectID)
	if err != nil {
		return nil, err
	}
	// Unknown columns are accepted so that older clients keep working.
	if c, ok := columnIndex(cols)[columnID]; ok {
		if err := ValidateValue(c, value); err != nil {
			return nil, err
		}
	}

	if expectedVersion == 0 {
		expectedVersion = t.Version
	}
	if expectedVersion != t.Version {
		metrics.IncrementVersionConflict("task")
		return nil, apperrors.Newf(apperrors.KindConflict, apperrors.CodeTaskVersionConflict,
			"task %s is at version %d, expected %d", taskID, t.Version, expectedVersion)
	}

	data := t.Data.Clone()
	if data == nil {
		data = models.TaskData{}
	}
	data[columnID] = value
	updated, err := s.store.UpdateTaskData(ctx, taskID, data, expectedVersion, s.now())
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			metrics.IncrementVersionConflict("task")
			s.log.Debug("task cell update lost the race",
				zap.String("task_id", taskID),
				zap.String("column_id", columnID),
				zap.Int64("expected_version", expectedVersion),
			)
		}
		return nil, apperrors.Store("update task", err)
	}
	return updated, nil
}

// List returns the project's tasks, newest first.
func (s *TaskService) List(ctx context.Context, actor models.Actor, projectID string) ([]models.Task, error) {
	if _, _, err := s.authorize(ctx, actor, projectID, models.RoleObserver); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, apperrors.Store("list tasks", err)
	}
	return tasks, nil
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, actor models.Actor, taskID string) (*models.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, apperrors.Store("get task", err)
	}
	if _, _, err := s.authorize(ctx, actor, t.ProjectID, models.RoleObserver); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, actor models.Actor, taskID string) error {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return apperrors.Store("get task", err)
	}
	if _, _, err := s.authorize(ctx, actor, t.ProjectID, models.RoleMember); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return apperrors.Store("delete task", err)
	}
	s.log.Info("task deleted", zap.String("task_id", taskID), zap.String("by", actor.UserID))
	return nil
}
