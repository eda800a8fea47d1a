package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/libris-io/libris/libstore"
	"github.com/libris-io/libris/libstore/postgresengine/internal/adapters"
)

const (
	colUserName         = "user_name"
	colUserEmail        = "email"
	colUserPasswordHash = "password_hash"
	colUserRole         = "role"

	opInsertUser      = "insert_user"
	opFindUser        = "find_user"
	opFindUserByEmail = "find_user_by_email"
	opListUsers       = "list_users"
	opUpdateUser      = "update_user"
	opDeleteUser      = "delete_user"
)

var userColumns = []any{
	colID, colUserName, colUserEmail, colUserPasswordHash, colUserRole,
	colCreatedAt, colUpdatedAt,
}

func scanUser(rows adapters.DBRows) (libstore.User, error) {
	var user libstore.User
	var idStr, roleStr string

	scanErr := rows.Scan(
		&idStr, &user.UserName, &user.Email, &user.PasswordHash, &roleStr,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if scanErr != nil {
		return libstore.User{}, scanErr
	}

	var parseErr error
	if user.ID, parseErr = uuid.Parse(idStr); parseErr != nil {
		return libstore.User{}, parseErr
	}

	user.Role = libstore.Role(roleStr)

	return user, nil
}

// InsertUser persists a new account as provided.
func (s *Store) InsertUser(ctx context.Context, user libstore.User) error {
	stmt := s.builder().
		Insert(s.table(tableUsers)).
		Rows(goqu.Record{
			colID:               user.ID.String(),
			colUserName:         user.UserName,
			colUserEmail:        user.Email,
			colUserPasswordHash: user.PasswordHash,
			colUserRole:         string(user.Role),
			colCreatedAt:        libstore.ToStoredTime(user.CreatedAt),
			colUpdatedAt:        libstore.ToStoredTime(user.UpdatedAt),
		})

	_, err := s.runExec(ctx, opInsertUser, stmt)

	return err
}

// FindUserByID returns the user with the given ID, or nil when it does not exist.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*libstore.User, error) {
	stmt := s.builder().
		From(s.table(tableUsers)).
		Select(userColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	return s.queryOneUser(ctx, opFindUser, stmt)
}

// FindUserByEmail returns the user with the given email, or nil.
// Emails are unique.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*libstore.User, error) {
	stmt := s.builder().
		From(s.table(tableUsers)).
		Select(userColumns...).
		Where(goqu.C(colUserEmail).Eq(email))

	return s.queryOneUser(ctx, opFindUserByEmail, stmt)
}

// ListUsers returns a page of accounts, newest first.
func (s *Store) ListUsers(ctx context.Context, page libstore.Page) ([]libstore.User, error) {
	page = page.Normalize()

	stmt := s.builder().
		From(s.table(tableUsers)).
		Select(userColumns...).
		Order(goqu.I(colCreatedAt).Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset))

	rows, err := s.runQuery(ctx, opListUsers, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	users := make([]libstore.User, 0)

	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, s.scanError(ctx, opListUsers, scanErr)
		}

		users = append(users, user)
	}

	return users, nil
}

// UpdateUser overwrites the mutable fields of an account and returns the
// updated record, or nil when the account does not exist.
func (s *Store) UpdateUser(ctx context.Context, user libstore.User) (*libstore.User, error) {
	stmt := s.builder().
		Update(s.table(tableUsers)).
		Set(goqu.Record{
			colUserName:         user.UserName,
			colUserEmail:        user.Email,
			colUserPasswordHash: user.PasswordHash,
			colUserRole:         string(user.Role),
			colUpdatedAt:        goqu.L("now()"),
		}).
		Where(goqu.C(colID).Eq(user.ID.String())).
		Returning(userColumns...)

	return s.queryOneUser(ctx, opUpdateUser, stmt)
}

// DeleteUser removes an account and reports whether it existed.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := s.builder().
		Delete(s.table(tableUsers)).
		Where(goqu.C(colID).Eq(id.String()))

	rowsAffected, err := s.runExec(ctx, opDeleteUser, stmt)
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (s *Store) queryOneUser(ctx context.Context, operation string, stmt sqlBuilder) (*libstore.User, error) {
	rows, err := s.runQuery(ctx, operation, stmt)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		return nil, nil
	}

	user, scanErr := scanUser(rows)
	if scanErr != nil {
		return nil, s.scanError(ctx, operation, scanErr)
	}

	return &user, nil
}
