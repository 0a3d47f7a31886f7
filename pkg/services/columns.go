package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/metrics"
	"collab-tracker-backend/pkg/models"

	"go.uber.org/zap"
)

// ColumnRegistry serves the column schema of each project. A project without
// its own schema uses the installation default from app config, itself
// falling back to the built-in 11 columns. The first write copies that
// default into the project.
type ColumnRegistry struct {
	base
	appConfig *AppConfigService
}

func NewColumnRegistry(store database.DatabaseInterface, appConfig *AppConfigService, opts ...Option) *ColumnRegistry {
	return &ColumnRegistry{base: newBase(store, opts), appConfig: appConfig}
}

// effective returns the ordered columns of a project and the stored schema
// version (0 when the project still uses the default).
func (r *ColumnRegistry) effective(ctx context.Context, projectID string) ([]models.Column, int64, error) {
	var (
		cols    []models.Column
		version int64
	)
	schema, err := r.store.GetColumnSchema(ctx, projectID)
	switch {
	case err == nil:
		cols, version = schema.Columns, schema.Version
	case apperrors.KindOf(err) == apperrors.KindNotFound:
		cols = r.appConfig.Load(ctx).DefaultColumns
	default:
		return nil, 0, apperrors.Store("get column schema", err)
	}
	cols = models.CloneColumns(cols)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	return cols, version, nil
}

// Columns lists the project's columns ordered by position.
func (r *ColumnRegistry) Columns(ctx context.Context, actor models.Actor, projectID string, visibleOnly bool) ([]models.Column, error) {
	if _, _, err := r.authorize(ctx, actor, projectID, models.RoleObserver); err != nil {
		return nil, err
	}
	cols, _, err := r.effective(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !visibleOnly {
		return cols, nil
	}
	visible := cols[:0]
	for _, c := range cols {
		if c.Visible {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// AddColumn appends def at position = current column count.
func (r *ColumnRegistry) AddColumn(ctx context.Context, actor models.Actor, projectID string, def models.Column) (*models.Column, error) {
	if _, _, err := r.authorize(ctx, actor, projectID, models.RoleAdmin); err != nil {
		return nil, err
	}
	def.ID = strings.TrimSpace(def.ID)
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		def.Name = def.ID
	}
	if err := ValidateColumn(def); err != nil {
		return nil, err
	}
	if !def.Type.HasOptions() {
		def.Options = nil
	}

	cols, version, err := r.effective(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.ID == def.ID {
			return nil, apperrors.Newf(apperrors.KindConflict, apperrors.CodeColumnExists, "column %q already exists", def.ID)
		}
	}
	def.Position = len(cols)
	cols = append(cols, def)

	if err := r.save(ctx, projectID, cols, version); err != nil {
		return nil, err
	}
	r.log.Info("column added",
		zap.String("project_id", projectID),
		zap.String("column_id", def.ID),
		zap.Int("position", def.Position),
	)
	return &def, nil
}

// UpdateColumn merges patch into the column. ID and position are immutable.
func (r *ColumnRegistry) UpdateColumn(ctx context.Context, actor models.Actor, projectID, columnID string, patch models.ColumnPatch) (*models.Column, error) {
	if _, _, err := r.authorize(ctx, actor, projectID, models.RoleAdmin); err != nil {
		return nil, err
	}
	cols, version, err := r.effective(ctx, projectID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, c := range cols {
		if c.ID == columnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.Newf(apperrors.KindNotFound, apperrors.CodeColumnNotFound, "column %q not found", columnID)
	}

	c := cols[idx]
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Visible != nil {
		c.Visible = *patch.Visible
	}
	if patch.Options != nil {
		c.Options = append([]string(nil), patch.Options...)
	}
	if !c.Type.HasOptions() {
		c.Options = nil
	}
	if err := ValidateColumn(c); err != nil {
		return nil, err
	}
	cols[idx] = c

	if err := r.save(ctx, projectID, cols, version); err != nil {
		return nil, err
	}
	r.log.Info("column updated", zap.String("project_id", projectID), zap.String("column_id", columnID))
	return &c, nil
}

func (r *ColumnRegistry) save(ctx context.Context, projectID string, cols []models.Column, version int64) error {
	schema := &models.ColumnSchema{ProjectID: projectID, Columns: cols}
	err := r.store.SaveColumnSchema(ctx, schema, version)
	if apperrors.KindOf(err) == apperrors.KindConflict {
		metrics.IncrementVersionConflict("column_schema")
	}
	return apperrors.Store("save column schema", err)
}

// ValidateColumn checks a column definition.
func ValidateColumn(c models.Column) error {
	invalid := func(reason string) error {
		return apperrors.Newf(apperrors.KindValidation, apperrors.CodeInvalidColumn, "column %q: %s", c.ID, reason).
			WithMetadata("reason", reason)
	}
	if c.ID == "" {
		return invalid("id is required")
	}
	if c.Name == "" {
		return invalid("name is required")
	}
	if !c.Type.Valid() {
		return invalid("unknown type " + string(c.Type))
	}
	if c.Type.HasOptions() && len(c.Options) == 0 {
		return invalid("options are required for " + string(c.Type))
	}
	return nil
}

// ValidateValue checks that value fits column. nil and "" are blank cells
// and always accepted.
func ValidateValue(c models.Column, value interface{}) error {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && s == "" {
		return nil
	}
	bad := apperrors.Newf(apperrors.KindValidation, apperrors.CodeInvalidCellValue,
		"value %v does not fit %s column %q", value, c.Type, c.ID).
		WithMetadata("column", c.Name)

	switch c.Type {
	case models.ColumnText, models.ColumnPerson:
		if _, ok := value.(string); !ok {
			return bad
		}
	case models.ColumnDate:
		s, ok := value.(string)
		if !ok || !isDate(s) {
			return bad
		}
	case models.ColumnSelect:
		s, ok := value.(string)
		if !ok || !contains(c.Options, s) {
			return bad
		}
	case models.ColumnMultiselect:
		items, ok := stringList(value)
		if !ok {
			return bad
		}
		for _, it := range items {
			if !contains(c.Options, it) {
				return bad
			}
		}
	case models.ColumnCheckbox:
		if _, ok := value.(bool); !ok {
			return bad
		}
	case models.ColumnNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64, json.Number:
		default:
			return bad
		}
	}
	return nil
}

func isDate(s string) bool {
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func stringList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, it := range list {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
