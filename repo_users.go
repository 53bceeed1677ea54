package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

var userColumns = []string{
	"name",
	"email",
	"role",
	"password_hash",
	"password_changed_at",
	"password_reset_token",
	"password_reset_expires",
	"updated_at",
}

// UsersRepository is the bun backed UserStore
type UsersRepository struct {
	repo        repository.Repository[*User]
	db          *bun.DB
	hasher      PasswordHasher
	minPassword int
	clock       func() time.Time
}

var _ UserStore = (*UsersRepository)(nil)

// NewUsersRepository creates a user store on db. hasher is used to hash
// passwords on Create.
func NewUsersRepository(db *bun.DB, hasher PasswordHasher, cfg Config) *UsersRepository {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &UsersRepository{
		repo:        repo,
		db:          db,
		hasher:      hasher,
		minPassword: cfg.GetMinPasswordLength(),
		clock:       time.Now,
	}
}

// WithClock overrides the time source for created_at and updated_at
func (r *UsersRepository) WithClock(clock func() time.Time) *UsersRepository {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *UsersRepository) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, newError(ErrUserNotFound, err, map[string]any{"id": id})
	}

	user, err := r.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, notFoundOr(err, "id", id)
	}
	return user, nil
}

func (r *UsersRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	user, err := r.repo.GetByIdentifier(ctx, email)
	if err != nil {
		return nil, notFoundOr(err, "email", email)
	}
	return user, nil
}

func (r *UsersRepository) FindByResetDigest(ctx context.Context, digest string, now time.Time) (*User, error) {
	if digest == "" {
		return nil, ErrUserNotFound
	}

	user := &User{}
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.password_reset_token = ?", digest).
		Where("?TableAlias.password_reset_expires > ?", now.UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "reset_digest", "")
	}
	return user, nil
}

// Create validates fields, hashes the password and inserts the user
func (r *UsersRepository) Create(ctx context.Context, fields UserFields) (*User, error) {
	fields.Email = NormalizeEmail(fields.Email)
	fields.Name = strings.TrimSpace(fields.Name)
	if fields.Role == "" {
		fields.Role = RoleStandard
	}

	if err := r.validateFields(fields); err != nil {
		return nil, validationError(err)
	}

	hash, err := r.hasher.HashCredential(ctx, fields.Password)
	if err != nil {
		return nil, err
	}

	now := r.clock().UTC()
	user := &User{
		ID:           fields.ID,
		Name:         fields.Name,
		Email:        fields.Email,
		Role:         fields.Role,
		PasswordHash: hash,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}
	prepareUserDefaults(user)

	var created *User
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.repo.GetByIdentifierTx(ctx, tx, user.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		record, cerr := r.repo.CreateTx(ctx, tx, user)
		if cerr != nil {
			return cerr
		}
		created = record
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		if richErr, ok := asRichError(err); ok && richErr.TextCode != "" {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	return created, nil
}

// Save writes every mutable column of user. With MatchResetDigest set
// the row is only updated while it still holds that digest.
func (r *UsersRepository) Save(ctx context.Context, user *User, opts SaveOptions) error {
	if user == nil || user.ID == uuid.Nil {
		return goerrors.New("user with id is required", goerrors.CategoryBadInput)
	}

	user.Email = NormalizeEmail(user.Email)
	if opts.Validate {
		if err := r.validateUser(user); err != nil {
			return validationError(err)
		}
	}

	now := r.clock().UTC()
	user.UpdatedAt = &now

	q := r.db.NewUpdate().
		Model(user).
		Column(userColumns...).
		WherePK()

	if opts.MatchResetDigest != "" {
		q = q.Where("?TableAlias.password_reset_token = ?", opts.MatchResetDigest)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save user")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if opts.MatchResetDigest != "" {
			return ErrInvalidResetToken
		}
		return newError(ErrUserNotFound, nil, map[string]any{"id": user.ID.String()})
	}

	return nil
}

func (r *UsersRepository) validateFields(f UserFields) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&f.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&f.Role, validation.Required, validation.By(validateRole)),
		validation.Field(&f.Password, validation.Required, validation.Length(r.minPassword, maxPasswordLength)),
	)
}

func (r *UsersRepository) validateUser(u *User) error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&u.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&u.Role, validation.Required, validation.By(validateRole)),
		validation.Field(&u.PasswordHash, validation.Required),
	)
}

func validateRole(value any) error {
	role, _ := value.(UserRole)
	if !role.IsValid() {
		return errors.New("unknown role")
	}
	return nil
}

func notFoundOr(err error, key, value string) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		meta := map[string]any{}
		if value != "" {
			meta[key] = value
		}
		return newError(ErrUserNotFound, err, meta)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
}

// isUniqueViolation recognises unique constraint errors from postgres
// and sqlite.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
