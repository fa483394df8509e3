// Package postgresdb provides a PostgreSQL-based implementation of the storage interface
// for persisting users, the access tokens issued to them and their blogs.
// The schema is kept in embedded goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type rowScanner interface {
	Scan(dest ...any) error
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping every table before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

var gooseUp = func(database *sql.DB, dir string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(database, dir)
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	return newWithDatabase(ctx, database, connectionTimeout, optionsProto...)
}

func newWithDatabase(
	ctx context.Context,
	database *sql.DB,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := gooseUp(result.database, "migrations"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func scanUser(row rowScanner) (*models.User, error) {
	var usr models.User
	err := row.Scan(&usr.ID, &usr.Username, &usr.Password, &usr.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}
		return nil, err
	}

	return &usr, nil
}

func scanAccessToken(row rowScanner) (*models.AccessToken, error) {
	var token models.AccessToken
	err := row.Scan(&token.ID, &token.UserID, &token.Token, &token.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}
		return nil, err
	}

	return &token, nil
}

func scanBlog(row rowScanner) (*models.Blog, error) {
	var blog models.Blog
	err := row.Scan(&blog.ID, &blog.Title, &blog.Content, &blog.AuthorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}
		return nil, err
	}

	return &blog, nil
}

// CreateUser inserts usr. A taken username yields models.ErrUsernameTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *models.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password, email) VALUES ($1, $2, $3, $4)`,
		usr.ID,
		usr.Username,
		usr.Password,
		usr.Email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/CreateUser(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}

	return nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return scanUser(db.database.QueryRowContext(
		ctx,
		`SELECT id, username, password, email FROM users WHERE id = $1`,
		userID,
	))
}

func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(db.database.QueryRowContext(
		ctx,
		`SELECT id, username, password, email FROM users WHERE username = $1`,
		username,
	))
}

func (db *PostgresDB) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := db.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.User{}
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *usr)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetUsersByIDs returns the existing users among userIDs; unknown ids are skipped.
func (db *PostgresDB) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}

	return db.queryUsers(
		ctx,
		`SELECT id, username, password, email FROM users WHERE id = ANY($1) ORDER BY id`,
		pq.Array(userIDs),
	)
}

func (db *PostgresDB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return db.queryUsers(ctx, `SELECT id, username, password, email FROM users ORDER BY id`)
}

func (db *PostgresDB) UpdateUserPassword(ctx context.Context, userID, password string) error {
	result, err := db.database.ExecContext(
		ctx,
		`UPDATE users SET password = $2 WHERE id = $1`,
		userID,
		password,
	)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

func (db *PostgresDB) DeleteUser(ctx context.Context, userID string) error {
	result, err := db.database.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

func (db *PostgresDB) DeleteAllUsers(ctx context.Context) error {
	_, err := db.database.ExecContext(ctx, `DELETE FROM users`)

	return err
}

func (db *PostgresDB) InsertAccessToken(ctx context.Context, token *models.AccessToken) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO access_tokens (id, user_id, token, type) VALUES ($1, $2, $3, $4)`,
		token.ID,
		token.UserID,
		token.Token,
		token.Type,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/InsertAccessToken(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}

	return nil
}

func (db *PostgresDB) FindAccessTokenByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	return scanAccessToken(db.database.QueryRowContext(
		ctx,
		`SELECT id, user_id, token, type FROM access_tokens WHERE token = $1`,
		value,
	))
}

func (db *PostgresDB) FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error) {
	return scanAccessToken(db.database.QueryRowContext(
		ctx,
		`SELECT id, user_id, token, type FROM access_tokens WHERE id = $1`,
		tokenID,
	))
}

// DeleteAccessTokensByUserIDs drops every token issued to one of userIDs.
func (db *PostgresDB) DeleteAccessTokensByUserIDs(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM access_tokens WHERE user_id = ANY($1)`,
		pq.Array(userIDs),
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (db *PostgresDB) InsertBlog(ctx context.Context, blog *models.Blog) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO blogs (id, title, content, author_id) VALUES ($1, $2, $3, $4)`,
		blog.ID,
		blog.Title,
		blog.Content,
		blog.AuthorID,
	)

	return err
}

func (db *PostgresDB) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	return scanBlog(db.database.QueryRowContext(
		ctx,
		`SELECT id, title, content, author_id FROM blogs WHERE id = $1`,
		blogID,
	))
}

// GetBlogs lists the blogs of authorID, or every blog when authorID is empty.
func (db *PostgresDB) GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, title, content, author_id FROM blogs WHERE $1 = '' OR author_id = $1 ORDER BY id`,
		authorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *blog)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateBlog applies patch to the blog only while it still belongs to authorID.
func (db *PostgresDB) UpdateBlog(
	ctx context.Context,
	blogID,
	authorID string,
	patch models.BlogPatch,
) (*models.Blog, error) {
	return scanBlog(db.database.QueryRowContext(
		ctx,
		`
			UPDATE blogs
				SET
					title = COALESCE($3, title),
					content = COALESCE($4, content)
				WHERE id = $1 AND author_id = $2
				RETURNING id, title, content, author_id
		`,
		blogID,
		authorID,
		nullString(patch.Title),
		nullString(patch.Content),
	))
}

// DeleteBlog removes the blog only while it still belongs to authorID.
func (db *PostgresDB) DeleteBlog(ctx context.Context, blogID, authorID string) error {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM blogs WHERE id = $1 AND author_id = $2`,
		blogID,
		authorID,
	)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *value, Valid: true}
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrRecordNotFound
	}

	return nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
