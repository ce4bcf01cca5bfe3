package service

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bookstore-api/config"
	"bookstore-api/logger"
	"bookstore-api/model"
	"bookstore-api/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// the response never reveals which one failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRefreshToken covers every refresh failure: bad signature,
	// expiry, missing user, no active record, and detected reuse. The caller
	// must re-authenticate; which case occurred is not disclosed.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

const passwordHashCost = 14

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService orchestrates login, refresh-token rotation and logout over the
// user store and the refresh-token ledger. Secrets and TTLs are injected at
// construction; nothing here reads global state.
type AuthService struct {
	userRepo  repository.IUserRepository
	tokenRepo repository.ITokenRepository
	jwtCfg    config.JWTConfig
}

func NewAuthService(userRepo repository.IUserRepository, tokenRepo repository.ITokenRepository, jwtCfg config.JWTConfig) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		jwtCfg:    jwtCfg,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash reports whether the password matches the stored hash. A
// malformed hash simply verifies false.
func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// hashToken produces the ledger hash of a raw refresh token. Raw tokens are
// JWTs and exceed bcrypt's 72-byte input limit, so the token is reduced to its
// SHA-256 digest first; bcrypt then adds the salt and work factor.
func (s *AuthService) hashToken(raw string) (string, error) {
	sum := sha256.Sum256([]byte(raw))
	bytes, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash refresh token")
		return "", err
	}
	return string(bytes), nil
}

func (s *AuthService) checkTokenHash(raw, hash string) bool {
	sum := sha256.Sum256([]byte(raw))
	return bcrypt.CompareHashAndPassword([]byte(hash), sum[:]) == nil
}

// generateToken signs an HS256 JWT for the user with the given class secret.
// Every token carries a random jti: iat and exp are truncated to whole
// seconds, so without it two tokens minted for the same user within one
// second would be byte-identical and a consumed refresh token could match
// its own successor's ledger record.
func (s *AuthService) generateToken(user *model.User, secret string, ttl time.Duration) (string, error) {
	jti, err := randomTokenID()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to generate token ID")
		return "", err
	}

	now := time.Now()
	claims := &model.AppClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		logger.Log.WithField("user_id", user.ID).WithError(err).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return signed, nil
}

// randomTokenID returns a 128-bit hex token identifier.
func randomTokenID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *AuthService) GenerateAccessToken(user *model.User) (string, error) {
	return s.generateToken(user, s.jwtCfg.AccessSecret, s.jwtCfg.AccessTokenTTL)
}

func (s *AuthService) GenerateRefreshToken(user *model.User) (string, error) {
	return s.generateToken(user, s.jwtCfg.RefreshSecret, s.jwtCfg.RefreshTokenTTL)
}

// VerifyToken parses and validates a token against the given class secret.
// Signature and expiry failures are returned as-is from the jwt library; the
// orchestrator flows below normalize them before they reach a caller.
func (s *AuthService) VerifyToken(raw, secret string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Login authenticates the user and issues a fresh access/refresh pair. Any
// previously active refresh records are revoked first, so a user has a single
// active session at a time.
func (s *AuthService) Login(email, password, ip, userAgent string) (*TokenPair, error) {
	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("could not look up user: %w", err)
	}

	// An account without a password hash cannot log in.
	if user.Password == "" || !s.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair, consuming the
// presented token. Presenting a token that is signed correctly but has no
// matching active ledger record is treated as reuse of a rotated or stolen
// token: every active session for that user is revoked before the call fails.
func (s *AuthService) Refresh(rawToken, ip, userAgent string) (*TokenPair, error) {
	claims, err := s.VerifyToken(rawToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("could not look up user: %w", err)
	}

	active, err := s.tokenRepo.GetActiveByUserID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("could not load refresh token records: %w", err)
	}
	if len(active) == 0 {
		return nil, ErrInvalidRefreshToken
	}

	var matched *model.RefreshToken
	for _, record := range active {
		if s.checkTokenHash(rawToken, record.TokenHash) {
			matched = record
			break
		}
	}

	if matched == nil {
		// Signed token, no active record: it was already rotated away or the
		// ledger was torn down. Indistinguishable from theft, so contain.
		return nil, s.containReuse(user.ID)
	}

	revoked, err := s.tokenRepo.Revoke(matched.ID)
	if err != nil {
		return nil, fmt.Errorf("could not revoke refresh token: %w", err)
	}
	if !revoked {
		// A concurrent refresh consumed this record first. The losing request
		// is re-classified as reuse.
		return nil, s.containReuse(user.ID)
	}

	pair, err := s.issueTokenPair(user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("user_id", user.ID).Info("Refresh token rotated")
	return pair, nil
}

// Logout revokes every active refresh record for the user. Calling it with
// nothing active is a successful no-op.
func (s *AuthService) Logout(userID int) error {
	if err := s.tokenRepo.RevokeAllByUserID(userID); err != nil {
		return fmt.Errorf("could not revoke refresh tokens: %w", err)
	}
	logger.Log.WithField("user_id", userID).Info("User logged out")
	return nil
}

// PurgeExpiredTokens deletes expired ledger records. Scheduling is external;
// see cmd/purge.
func (s *AuthService) PurgeExpiredTokens() (int64, error) {
	return s.tokenRepo.DeleteExpired()
}

// containReuse performs mass revocation for the user and returns the uniform
// refresh failure. The event is logged without any token material.
func (s *AuthService) containReuse(userID int) error {
	logger.Log.WithField("user_id", userID).Warn("Refresh token reuse detected, revoking all sessions")
	if err := s.tokenRepo.RevokeAllByUserID(userID); err != nil {
		return fmt.Errorf("could not revoke refresh tokens: %w", err)
	}
	return ErrInvalidRefreshToken
}

// issueTokenPair mints both tokens, supersedes any prior active records and
// persists the ledger entry for the new refresh token.
func (s *AuthService) issueTokenPair(user *model.User, ip, userAgent string) (*TokenPair, error) {
	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	tokenHash, err := s.hashToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if err := s.tokenRepo.RevokeAllByUserID(user.ID); err != nil {
		return nil, fmt.Errorf("could not revoke previous refresh tokens: %w", err)
	}

	record := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(s.jwtCfg.RefreshTokenTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.tokenRepo.Create(record); err != nil {
		return nil, fmt.Errorf("could not store refresh token record: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
