package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	// SQL drivers selectable through configuration.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type dialect struct {
	driver      string
	placeholder sq.PlaceholderFormat
	schema      []string
	// returning is set when inserts must use RETURNING instead of LastInsertId.
	returning bool
	concatLog string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		driver:      DriverSQLite,
		placeholder: sq.Question,
		concatLog:   "log || ?",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				branch TEXT NOT NULL,
				environments TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS builds (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_id INTEGER NOT NULL,
				status INTEGER NOT NULL,
				source INTEGER NOT NULL,
				environment TEXT NOT NULL,
				branch TEXT NOT NULL,
				tag TEXT NOT NULL,
				commit_id TEXT NOT NULL,
				committer_email TEXT NOT NULL,
				commit_message TEXT NOT NULL,
				extra TEXT NOT NULL,
				user_id INTEGER NOT NULL,
				create_date INTEGER NOT NULL,
				start_date INTEGER,
				finish_date INTEGER,
				log TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_builds_project_branch ON builds(project_id, branch)`,
		},
	},
	DriverMySQL: {
		driver:      DriverMySQL,
		placeholder: sq.Question,
		concatLog:   "CONCAT(log, ?)",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				title VARCHAR(250) NOT NULL,
				branch VARCHAR(250) NOT NULL,
				environments TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS builds (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				project_id BIGINT NOT NULL,
				status INT NOT NULL,
				source INT NOT NULL,
				environment VARCHAR(250) NOT NULL,
				branch VARCHAR(250) NOT NULL,
				tag VARCHAR(250) NOT NULL,
				commit_id VARCHAR(50) NOT NULL,
				committer_email VARCHAR(512) NOT NULL,
				commit_message TEXT NOT NULL,
				extra TEXT NOT NULL,
				user_id BIGINT NOT NULL,
				create_date BIGINT NOT NULL,
				start_date BIGINT NULL,
				finish_date BIGINT NULL,
				log LONGTEXT NOT NULL,
				INDEX idx_builds_project_branch (project_id, branch)
			)`,
		},
	},
	DriverPostgres: {
		driver:      DriverPostgres,
		placeholder: sq.Dollar,
		returning:   true,
		concatLog:   "log || ?",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				branch TEXT NOT NULL,
				environments TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS builds (
				id BIGSERIAL PRIMARY KEY,
				project_id BIGINT NOT NULL,
				status INTEGER NOT NULL,
				source INTEGER NOT NULL,
				environment TEXT NOT NULL,
				branch TEXT NOT NULL,
				tag TEXT NOT NULL,
				commit_id TEXT NOT NULL,
				committer_email TEXT NOT NULL,
				commit_message TEXT NOT NULL,
				extra TEXT NOT NULL,
				user_id BIGINT NOT NULL,
				create_date BIGINT NOT NULL,
				start_date BIGINT,
				finish_date BIGINT,
				log TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_builds_project_branch ON builds(project_id, branch)`,
		},
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
	return d, nil
}

func (d dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}
