package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() *UsersRepository
	DB() *bun.DB
	SetLogger(logger Logger)
	Migrate(ctx context.Context) error
}

type mngr struct {
	db     *bun.DB
	users  *UsersRepository
	logger Logger
}

// NewRepositoryManager builds the user store on db
func NewRepositoryManager(db *bun.DB, hasher PasswordHasher, cfg Config) RepositoryManager {
	return &mngr{
		db:     db,
		users:  NewUsersRepository(db, hasher, cfg),
		logger: defLogger{},
	}
}

// OpenDB opens a bun database for dsn. postgres:// and postgresql:// DSNs
// use pgx, anything else is handed to sqlite.
func OpenDB(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	// sqlite in-memory databases live per connection
	if strings.Contains(dsn, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() *UsersRepository {
	return m.users
}

func (m mngr) DB() *bun.DB {
	return m.db
}

// SetLogger sets the logger used while migrating
func (m *mngr) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Migrate applies the embedded schema using the dialect of the database
func (m *mngr) Migrate(ctx context.Context) error {
	return Migrate(ctx, m.db, m.logger)
}
