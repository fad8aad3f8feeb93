package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/openforge/forge-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	CreateUser(ctx context.Context, username, email, password, displayName string, roles []models.UserRole) (models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, display_name, preferred_email, email_addresses, password_hash, is_active, roles`

func (u *userRepository) CreateUser(ctx context.Context, username, email, password, displayName string, roles []models.UserRole) (models.User, error) {
	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleViewer}
	}
	if !models.IsValidRoleList(roles) {
		return models.User{}, errors.New("invalid roles")
	}
	normalized := models.EnsureDefaultRole(models.NormalizeRoles(roles))

	username = strings.TrimSpace(username)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	var addresses []string
	if email = strings.TrimSpace(email); email != "" {
		addresses = []string{email}
	}

	const query = `
		INSERT INTO forge.users (username, display_name, preferred_email, email_addresses, password_hash, is_active, roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	user := models.User{
		Username:       username,
		DisplayName:    displayName,
		PreferredEmail: email,
		EmailAddresses: addresses,
		PasswordHash:   string(hash),
		IsActive:       true,
		Roles:          normalized,
	}
	err = u.db.QueryRowContext(ctx, query,
		user.Username, user.DisplayName, user.PreferredEmail, pq.Array(user.EmailAddresses),
		user.PasswordHash, user.IsActive, pq.Array(toStringSlice(user.Roles))).Scan(&user.ID)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (u *userRepository) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM forge.users
		WHERE username = $1 AND deleted_at IS NULL`

	user, err := u.scanUser(u.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, errors.New("invalid credentials")
		}
		return models.User{}, err
	}
	if !user.IsActive {
		return models.User{}, errors.New("account disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, errors.New("invalid credentials")
	}
	return user, nil
}

func (u *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM forge.users
		WHERE id = $1 AND deleted_at IS NULL`
	return u.scanUser(u.db.QueryRowContext(ctx, query, userID))
}

func (u *userRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM forge.users
		WHERE username = $1 AND deleted_at IS NULL`
	return u.scanUser(u.db.QueryRowContext(ctx, query, username))
}

func (u *userRepository) scanUser(row *sql.Row) (models.User, error) {
	var (
		user      models.User
		addresses pq.StringArray
		roles     pq.StringArray
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PreferredEmail,
		&addresses,
		&user.PasswordHash,
		&user.IsActive,
		&roles,
	)
	if err != nil {
		return models.User{}, err
	}
	user.EmailAddresses = addresses
	user.Roles = toUserRoleSlice(roles)
	return user, nil
}

func toStringSlice(roles []models.UserRole) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}

func toUserRoleSlice(raw []string) []models.UserRole {
	out := make([]models.UserRole, len(raw))
	for i, role := range raw {
		out[i] = models.UserRole(role)
	}
	return out
}
