package repository

import (
	"database/sql"

	"bookstore-api/logger"
	"bookstore-api/model"
)

// ITokenRepository defines the contract for the refresh-token ledger.
type ITokenRepository interface {
	Create(token *model.RefreshToken) error
	GetActiveByUserID(userID int) ([]*model.RefreshToken, error)
	Revoke(id int) (bool, error)
	RevokeAllByUserID(userID int) error
	DeleteExpired() (int64, error)
}

// TokenRepository implements ITokenRepository on Postgres.
type TokenRepository struct {
	DB *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

// Create inserts a new refresh token record. Only the hash of the raw token is
// ever passed in here.
func (r *TokenRepository) Create(token *model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (user_id, token_hash, expires_at, ip_address, user_agent)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	err := r.DB.QueryRow(query,
		token.UserID, token.TokenHash, token.ExpiresAt, token.IPAddress, token.UserAgent,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		logger.Log.WithField("user_id", token.UserID).WithError(err).
			Error("Failed to insert refresh token record")
		return err
	}
	return nil
}

// GetActiveByUserID returns the user's non-revoked, non-expired records.
func (r *TokenRepository) GetActiveByUserID(userID int) ([]*model.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, revoked, ip_address, user_agent, created_at
	          FROM refresh_tokens
	          WHERE user_id = $1 AND revoked = FALSE AND expires_at > NOW()`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		logger.Log.WithField("user_id", userID).WithError(err).
			Error("Failed to query active refresh tokens")
		return nil, err
	}
	defer rows.Close()

	var tokens []*model.RefreshToken
	for rows.Next() {
		token := &model.RefreshToken{}
		var ip, ua sql.NullString
		if err := rows.Scan(
			&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt,
			&token.Revoked, &ip, &ua, &token.CreatedAt,
		); err != nil {
			return nil, err
		}
		token.IPAddress = ip.String
		token.UserAgent = ua.String
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// Revoke flips the revoked flag on a single record. The update is conditional
// on the record still being active, so when two rotations race only one caller
// sees true; the other must treat the token as already consumed.
func (r *TokenRepository) Revoke(id int) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`, id)
	if err != nil {
		logger.Log.WithField("token_id", id).WithError(err).
			Error("Failed to revoke refresh token")
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RevokeAllByUserID revokes every active record for the user. Used on logout
// and for containment when token reuse is detected.
func (r *TokenRepository) RevokeAllByUserID(userID int) error {
	_, err := r.DB.Exec(
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
	if err != nil {
		logger.Log.WithField("user_id", userID).WithError(err).
			Error("Failed to revoke user's refresh tokens")
	}
	return err
}

// DeleteExpired physically removes expired records to bound table growth. It
// is driven by an external scheduler (see cmd/purge) and is safe to run
// concurrently with live traffic: rows revoked or deleted in the meantime
// simply do not match.
func (r *TokenRepository) DeleteExpired() (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to delete expired refresh tokens")
		return 0, err
	}
	return res.RowsAffected()
}
