package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	"git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/model"
)

var buildColumns = []string{
	"id", "project_id", "status", "source", "environment", "branch", "tag",
	"commit_id", "committer_email", "commit_message", "extra", "user_id",
	"create_date", "start_date", "finish_date", "log",
}

// SQLStore implements BuildStore and ProjectStore on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and creates the schema.
// For sqlite use ":memory:" for an in-memory database, or a file path.
func Open(driver, dsn string) (*SQLStore, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "invalid store configuration")
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.StoreUnavailable("open", err)
	}
	if d.driver == DriverSQLite {
		// An in-memory database exists per connection, and sqlite serializes writers anyway.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.initialize(context.Background()); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.StoreUnavailable("initialize schema", err)
	}
	return s, nil
}

func (s *SQLStore) initialize(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.StoreUnavailable("ping", err)
	}
	return nil
}

// Save inserts or updates a build.
func (s *SQLStore) Save(ctx context.Context, build *model.Build) (*model.Build, error) {
	extra, err := encodeExtra(build.Extra)
	if err != nil {
		return nil, err
	}

	if build.ID > 0 {
		query := s.dialect.builder().
			Update("builds").
			Set("status", int(build.Status)).
			Set("environment", build.Environment).
			Set("branch", build.Branch).
			Set("tag", build.Tag).
			Set("commit_id", build.CommitID).
			Set("committer_email", build.CommitterEmail).
			Set("commit_message", build.CommitMessage).
			Set("extra", extra).
			Set("user_id", build.UserID).
			Set("start_date", nullableTime(build.StartDate)).
			Set("finish_date", nullableTime(build.FinishDate)).
			Set("log", build.Log).
			Where(sq.Eq{"id": build.ID})
		if err := s.exec(ctx, "save build", query); err != nil {
			return nil, err
		}
		return build, nil
	}

	insert := s.dialect.builder().
		Insert("builds").
		Columns(buildColumns[1:]...).
		Values(
			build.ProjectID, int(build.Status), int(build.Source), build.Environment,
			build.Branch, build.Tag, build.CommitID, build.CommitterEmail, build.CommitMessage,
			extra, build.UserID, build.CreateDate.UnixNano(),
			nullableTime(build.StartDate), nullableTime(build.FinishDate), build.Log,
		)
	id, err := s.insert(ctx, "insert build", insert)
	if err != nil {
		return nil, err
	}
	build.ID = id
	return build, nil
}

// GetByID loads a build.
func (s *SQLStore) GetByID(ctx context.Context, id int64) (*model.Build, error) {
	query := s.dialect.builder().
		Select(buildColumns...).
		From("builds").
		Where(sq.Eq{"id": id})
	builds, err := s.queryBuilds(ctx, "get build", query)
	if err != nil {
		return nil, err
	}
	if len(builds) == 0 {
		return nil, fmt.Errorf("build %d: %w", id, ErrNotFound)
	}
	return builds[0], nil
}

// Delete removes a build row.
func (s *SQLStore) Delete(ctx context.Context, build *model.Build) (bool, error) {
	sqlStr, args, err := s.dialect.builder().Delete("builds").Where(sq.Eq{"id": build.ID}).ToSql()
	if err != nil {
		return false, errors.InternalError("build delete query", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, errors.StoreUnavailable("delete build", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.StoreUnavailable("delete build", err)
	}
	return n > 0, nil
}

// GetLatestBuilds returns the newest builds, optionally for one project.
func (s *SQLStore) GetLatestBuilds(ctx context.Context, projectID *int64, limit int) ([]*model.Build, error) {
	query := s.dialect.builder().
		Select(buildColumns...).
		From("builds").
		OrderBy("id DESC")
	if projectID != nil {
		query = query.Where(sq.Eq{"project_id": *projectID})
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.queryBuilds(ctx, "latest builds", query)
}

// GetLatestBuildByProjectAndBranch returns the newest build of a branch, or nil.
func (s *SQLStore) GetLatestBuildByProjectAndBranch(ctx context.Context, projectID int64, branch string) (*model.Build, error) {
	query := s.dialect.builder().
		Select(buildColumns...).
		From("builds").
		Where(sq.Eq{"project_id": projectID, "branch": branch}).
		OrderBy("id DESC").
		Limit(1)
	builds, err := s.queryBuilds(ctx, "latest build by branch", query)
	if err != nil || len(builds) == 0 {
		return nil, err
	}
	return builds[0], nil
}

// GetOldByProject returns all builds of a project beyond the newest keep.
func (s *SQLStore) GetOldByProject(ctx context.Context, projectID int64, keep int) (OldBuilds, error) {
	if keep < 0 {
		keep = 0
	}
	// sqlite and mysql reject OFFSET without LIMIT.
	query := s.dialect.builder().
		Select(buildColumns...).
		From("builds").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("id DESC").
		Limit(uint64(math.MaxInt64)).
		Offset(uint64(keep))
	builds, err := s.queryBuilds(ctx, "old builds", query)
	if err != nil {
		return OldBuilds{}, err
	}
	return OldBuilds{Items: builds, Count: len(builds)}, nil
}

// DeleteAllByProject removes every build of a project.
func (s *SQLStore) DeleteAllByProject(ctx context.Context, projectID int64) error {
	query := s.dialect.builder().Delete("builds").Where(sq.Eq{"project_id": projectID})
	return s.exec(ctx, "delete project builds", query)
}

// AppendLog concatenates text to a build's log column.
func (s *SQLStore) AppendLog(ctx context.Context, buildID int64, text string) error {
	query := s.dialect.builder().
		Update("builds").
		Set("log", sq.Expr(s.dialect.concatLog, text)).
		Where(sq.Eq{"id": buildID})
	return s.exec(ctx, "append build log", query)
}

// Projects returns a ProjectStore view backed by the same database.
func (s *SQLStore) Projects() ProjectStore {
	return &sqlProjectStore{s: s}
}

type sqlProjectStore struct {
	s *SQLStore
}

func (p *sqlProjectStore) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	sqlStr, args, err := p.s.dialect.builder().
		Select("id", "title", "branch", "environments").
		From("projects").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.InternalError("project query", err)
	}

	var (
		project model.Project
		envs    string
	)
	row := p.s.db.QueryRowContext(ctx, sqlStr, args...)
	if err := row.Scan(&project.ID, &project.Title, &project.Branch, &envs); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.StoreUnavailable("get project", err)
	}
	if envs != "" {
		if err := json.Unmarshal([]byte(envs), &project.EnvironmentBranches); err != nil {
			return nil, errors.StoreUnavailable("decode project environments", err)
		}
	}
	return &project, nil
}

func (p *sqlProjectStore) Save(ctx context.Context, project *model.Project) (*model.Project, error) {
	envs, err := json.Marshal(project.EnvironmentBranches)
	if err != nil {
		return nil, errors.InternalError("encode project environments", err)
	}

	if project.ID > 0 {
		query := p.s.dialect.builder().
			Update("projects").
			Set("title", project.Title).
			Set("branch", project.Branch).
			Set("environments", string(envs)).
			Where(sq.Eq{"id": project.ID})
		if err := p.s.exec(ctx, "save project", query); err != nil {
			return nil, err
		}
		return project, nil
	}

	insert := p.s.dialect.builder().
		Insert("projects").
		Columns("title", "branch", "environments").
		Values(project.Title, project.Branch, string(envs))
	id, err := p.s.insert(ctx, "insert project", insert)
	if err != nil {
		return nil, err
	}
	project.ID = id
	return project, nil
}

func (s *SQLStore) exec(ctx context.Context, op string, query sq.Sqlizer) error {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return errors.InternalError(op+" query", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.StoreUnavailable(op, err)
	}
	return nil
}

func (s *SQLStore) insert(ctx context.Context, op string, query sq.InsertBuilder) (int64, error) {
	if s.dialect.returning {
		sqlStr, args, err := query.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, errors.InternalError(op+" query", err)
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return 0, errors.StoreUnavailable(op, err)
		}
		return id, nil
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, errors.InternalError(op+" query", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, errors.StoreUnavailable(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.StoreUnavailable(op, err)
	}
	return id, nil
}

func (s *SQLStore) queryBuilds(ctx context.Context, op string, query sq.SelectBuilder) ([]*model.Build, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.InternalError(op+" query", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.StoreUnavailable(op, err)
	}
	defer rows.Close()

	var builds []*model.Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, errors.StoreUnavailable(op, err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreUnavailable(op, err)
	}
	return builds, nil
}

func scanBuild(rows *sql.Rows) (*model.Build, error) {
	var (
		b                     model.Build
		status, source        int
		extra                 string
		createDate            int64
		startDate, finishDate sql.NullInt64
	)
	err := rows.Scan(
		&b.ID, &b.ProjectID, &status, &source, &b.Environment, &b.Branch, &b.Tag,
		&b.CommitID, &b.CommitterEmail, &b.CommitMessage, &extra, &b.UserID,
		&createDate, &startDate, &finishDate, &b.Log,
	)
	if err != nil {
		return nil, fmt.Errorf("scan build: %w", err)
	}
	b.Status = model.BuildStatus(status)
	b.Source = model.BuildSource(source)
	b.CreateDate = time.Unix(0, createDate)
	b.StartDate = timeFromNull(startDate)
	b.FinishDate = timeFromNull(finishDate)
	if extra != "" && extra != "null" {
		if err := json.Unmarshal([]byte(extra), &b.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return &b, nil
}

func encodeExtra(extra model.Extra) (string, error) {
	if extra == nil {
		return "", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", errors.InternalError("encode build extra", err)
	}
	return string(data), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}
