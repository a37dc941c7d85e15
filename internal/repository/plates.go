package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// StoredPlate is a persisted record with the run it belongs to.
type StoredPlate struct {
	entity.PlateRecord
	RunID     uuid.UUID `json:"run_id"`
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
}

type PlateRepository interface {
	InsertMany(ctx context.Context, runID uuid.UUID, records []entity.PlateRecord) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]StoredPlate, error)
	// ListAll returns plates created in [from, to); nil bounds are open.
	ListAll(ctx context.Context, from, to *time.Time) ([]StoredPlate, error)
}

type plateRepo struct {
	db  *DB
	log *slog.Logger
}

func NewPlateRepository(db *DB, log *slog.Logger) PlateRepository {
	if log == nil {
		log = slog.Default()
	}
	return &plateRepo{db: db, log: log}
}

var plateColumns = []string{"id", "run_id", "seq", "plate_text", "raw_text", "confidence", "format", "polygon", "created_at"}

// InsertMany stores records in rank order in a single statement.
func (r *plateRepo) InsertMany(ctx context.Context, runID uuid.UUID, records []entity.PlateRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	ins := r.db.builder().Insert("plate_records").Columns(plateColumns...)
	for i, rec := range records {
		poly, err := json.Marshal(rec.Polygon)
		if err != nil {
			return fmt.Errorf("encode polygon: %w", err)
		}
		ins.Values(rec.ID.String(), runID.String(), i+1, rec.Text, rec.RawText, rec.Confidence, rec.Format, string(poly), now)
	}
	query, args := ins.Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("plate_records insert failed", "run_id", runID, "count", len(records), "err", err)
		return common.DatabaseError("insert plates", err)
	}
	r.log.Debug("plate_records inserted", "run_id", runID, "count", len(records))
	return nil
}

func (r *plateRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]StoredPlate, error) {
	b := r.db.builder()
	query, args := b.Select(plateColumns...).
		From(b.Table("plate_records")).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("seq").
		Query()
	return r.list(ctx, query, args)
}

func (r *plateRepo) ListAll(ctx context.Context, from, to *time.Time) ([]StoredPlate, error) {
	b := r.db.builder()
	sel := b.Select(plateColumns...).From(b.Table("plate_records"))
	var preds []*entsql.Predicate
	if from != nil {
		preds = append(preds, entsql.GTE("created_at", from.UTC()))
	}
	if to != nil {
		preds = append(preds, entsql.LT("created_at", to.UTC()))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	query, args := sel.OrderBy("created_at", "run_id", "seq").Query()
	return r.list(ctx, query, args)
}

func (r *plateRepo) list(ctx context.Context, query string, args []any) ([]StoredPlate, error) {
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("plate_records query failed", "err", err)
		return nil, common.DatabaseError("list plates", err)
	}
	defer rows.Close()

	var out []StoredPlate
	for rows.Next() {
		var (
			id, runID, poly string
			p               StoredPlate
		)
		if err := rows.Scan(&id, &runID, &p.Rank, &p.Text, &p.RawText, &p.Confidence, &p.Format, &poly, &p.CreatedAt); err != nil {
			return nil, common.DatabaseError("scan plate", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, common.DatabaseError("scan plate", err)
		}
		if p.RunID, err = uuid.Parse(runID); err != nil {
			return nil, common.DatabaseError("scan plate", err)
		}
		if err := json.Unmarshal([]byte(poly), &p.Polygon); err != nil {
			return nil, common.DatabaseError("decode polygon", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("list plates", err)
	}
	return out, nil
}
