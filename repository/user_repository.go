package repository

import (
	"database/sql"

	"bookstore-api/model"
)

// IUserRepository defines the contract for user database operations.
type IUserRepository interface {
	CreateUser(user *model.User) error
	GetUserByEmail(email string) (*model.User, error)
	GetUserByID(id int) (*model.User, error)
	GetAllUsers() ([]*model.User, error)
	UpdateUser(user *model.User) error
	UpdateUserRole(userID int, newRole string) error
	SoftDeleteUser(id int) (bool, error)
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) CreateUser(user *model.User) error {
	query := `INSERT INTO users (name, email, password, address, phone_number, role)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`
	return r.DB.QueryRow(query,
		user.Name, user.Email, user.Password, user.Address, user.PhoneNumber, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

// GetUserByEmail returns a live (not soft-deleted) user by email.
func (r *UserRepository) GetUserByEmail(email string) (*model.User, error) {
	query := `SELECT id, name, email, password, address, phone_number, role, created_at, updated_at
	          FROM users WHERE email = $1 AND deleted_at IS NULL`
	return r.scanUser(r.DB.QueryRow(query, email))
}

func (r *UserRepository) GetUserByID(id int) (*model.User, error) {
	query := `SELECT id, name, email, password, address, phone_number, role, created_at, updated_at
	          FROM users WHERE id = $1 AND deleted_at IS NULL`
	return r.scanUser(r.DB.QueryRow(query, id))
}

func (r *UserRepository) scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var address, phone sql.NullString
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Password,
		&address, &phone, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Address = address.String
	user.PhoneNumber = phone.String
	return user, nil
}

func (r *UserRepository) GetAllUsers() ([]*model.User, error) {
	query := `SELECT id, name, email, address, phone_number, role, created_at, updated_at
	          FROM users WHERE deleted_at IS NULL ORDER BY id`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		var address, phone sql.NullString
		if err := rows.Scan(
			&user.ID, &user.Name, &user.Email,
			&address, &phone, &user.Role, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		user.Address = address.String
		user.PhoneNumber = phone.String
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateUser(user *model.User) error {
	query := `UPDATE users SET name = $1, password = $2, address = $3, phone_number = $4, updated_at = NOW()
	          WHERE id = $5 AND deleted_at IS NULL`
	_, err := r.DB.Exec(query, user.Name, user.Password, user.Address, user.PhoneNumber, user.ID)
	return err
}

func (r *UserRepository) UpdateUserRole(userID int, newRole string) error {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.DB.Exec(query, newRole, userID)
	return err
}

// SoftDeleteUser marks the user deleted without removing the row. It reports
// whether a live row was actually marked.
func (r *UserRepository) SoftDeleteUser(id int) (bool, error) {
	query := `UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.Exec(query, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
