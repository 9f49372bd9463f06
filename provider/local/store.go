package local

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Store exposes the local backend's repositories over one bun handle.
type Store struct {
	db          *bun.DB
	users       repository.Repository[*AuthUser]
	profiles    repository.Repository[*Profile]
	assessments repository.Repository[*Assessment]
}

// NewDB opens a sqlite-backed bun handle. Use ":memory:" for tests.
func NewDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewStore builds the repositories and creates the schema when absent.
func NewStore(ctx context.Context, db *bun.DB) (*Store, error) {
	s := &Store{
		db:          db,
		users:       newUsersRepository(db),
		profiles:    newProfilesRepository(db),
		assessments: newAssessmentsRepository(db),
	}

	if err := s.createTables(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	models := []any{
		(*AuthUser)(nil),
		(*Profile)(nil),
		(*Assessment)(nil),
		(*Result)(nil),
	}

	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// DB exposes the underlying handle for queries the repositories do not
// cover (ordered listings, joins).
func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) Users() repository.Repository[*AuthUser] {
	return s.users
}

func (s *Store) Profiles() repository.Repository[*Profile] {
	return s.profiles
}

func (s *Store) Assessments() repository.Repository[*Assessment] {
	return s.assessments
}

// RunInTx wraps fn in a transaction.
func (s *Store) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.db.RunInTx(ctx, opts, fn)
}

func newUsersRepository(db *bun.DB) repository.Repository[*AuthUser] {
	handlers := repository.ModelHandlers[*AuthUser]{
		NewRecord: func() *AuthUser {
			return &AuthUser{}
		},
		GetID: func(record *AuthUser) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AuthUser, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

func newProfilesRepository(db *bun.DB) repository.Repository[*Profile] {
	handlers := repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile {
			return &Profile{}
		},
		GetID: func(record *Profile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Profile, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

func newAssessmentsRepository(db *bun.DB) repository.Repository[*Assessment] {
	handlers := repository.ModelHandlers[*Assessment]{
		NewRecord: func() *Assessment {
			return &Assessment{}
		},
		GetID: func(record *Assessment) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Assessment, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}
	return repository.NewRepository(db, handlers)
}
