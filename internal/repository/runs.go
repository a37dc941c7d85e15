package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// RunOutcome is what a finished run records.
type RunOutcome struct {
	Status       constants.RunStatus
	Engine       string
	Regions      int
	FallbackUsed bool
	PlateCount   int
	Error        string
}

type RunRepository interface {
	Start(ctx context.Context, sourcePath string, hash []byte) (*entity.PlateRun, error)
	Finish(ctx context.Context, id uuid.UUID, outcome RunOutcome) error
	FindDoneByHash(ctx context.Context, hash []byte) (*entity.PlateRun, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.PlateRun, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

var runColumns = []string{
	"id", "source_path", "filename", "content_hash", "status", "engine", "regions",
	"fallback_used", "plate_count", "error_message", "started_at", "finished_at",
}

func (r *runRepo) Start(ctx context.Context, sourcePath string, hash []byte) (*entity.PlateRun, error) {
	run := &entity.PlateRun{
		ID:          uuid.New(),
		SourcePath:  sourcePath,
		Filename:    filepath.Base(sourcePath),
		ContentHash: hash,
		Status:      string(constants.RunStatusRunning),
		StartedAt:   time.Now().UTC(),
	}
	query, args := r.db.builder().Insert("plate_runs").
		Columns("id", "source_path", "filename", "content_hash", "status", "started_at").
		Values(run.ID.String(), run.SourcePath, run.Filename, hex.EncodeToString(hash), run.Status, run.StartedAt).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("plate_run start failed", "source_path", sourcePath, "err", err)
		return nil, common.DatabaseError("start run", err)
	}
	r.log.Info("plate_run started", "run_id", run.ID, "file", run.Filename)
	return run, nil
}

func (r *runRepo) Finish(ctx context.Context, id uuid.UUID, outcome RunOutcome) error {
	var errMsg any
	if outcome.Error != "" {
		errMsg = outcome.Error
	}
	query, args := r.db.builder().Update("plate_runs").
		Set("status", string(outcome.Status)).
		Set("engine", outcome.Engine).
		Set("regions", outcome.Regions).
		Set("fallback_used", outcome.FallbackUsed).
		Set("plate_count", outcome.PlateCount).
		Set("error_message", errMsg).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.EQ("id", id.String())).
		Query()
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("plate_run finish failed", "run_id", id, "err", err)
		return common.DatabaseError("finish run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError(common.CodeNotFound, fmt.Sprintf("run %s", id), common.ErrNotFound)
	}
	if outcome.Status == constants.RunStatusFailed || outcome.Status == constants.RunStatusLoadError {
		r.log.Warn("plate_run finished", "run_id", id, "status", outcome.Status, "error", outcome.Error)
	} else {
		r.log.Info("plate_run finished", "run_id", id, "status", outcome.Status, "plates", outcome.PlateCount)
	}
	return nil
}

// FindDoneByHash returns the latest completed run of identical content. Runs
// that finished with an error message, such as recognition cut short by a
// deadline, never count as completed.
func (r *runRepo) FindDoneByHash(ctx context.Context, hash []byte) (*entity.PlateRun, error) {
	b := r.db.builder()
	query, args := b.Select(runColumns...).
		From(b.Table("plate_runs")).
		Where(entsql.And(
			entsql.EQ("content_hash", hex.EncodeToString(hash)),
			entsql.In("status", string(constants.RunStatusDone), string(constants.RunStatusNoPlates)),
			entsql.IsNull("error_message"),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()
	return r.one(ctx, query, args, "hash "+hex.EncodeToString(hash))
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*entity.PlateRun, error) {
	b := r.db.builder()
	query, args := b.Select(runColumns...).
		From(b.Table("plate_runs")).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.one(ctx, query, args, "run "+id.String())
}

func (r *runRepo) one(ctx context.Context, query string, args []any, what string) (*entity.PlateRun, error) {
	row := r.db.SQL.QueryRowContext(ctx, query, args...)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, what, common.ErrNotFound)
	}
	if err != nil {
		r.log.Error("plate_run query failed", "what", what, "err", err)
		return nil, common.DatabaseError("query run", err)
	}
	return run, nil
}

func scanRun(row interface{ Scan(...any) error }) (*entity.PlateRun, error) {
	var (
		id, hash string
		errMsg   sql.NullString
		finished sql.NullTime
		run      entity.PlateRun
	)
	if err := row.Scan(&id, &run.SourcePath, &run.Filename, &hash, &run.Status, &run.Engine,
		&run.Regions, &run.FallbackUsed, &run.PlateCount, &errMsg, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	run.ID = parsed
	if run.ContentHash, err = hex.DecodeString(hash); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
