package service

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"bookstore-api/config"
	"bookstore-api/logger"
	"bookstore-api/model"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

// TestMain runs setup before any tests in this package are executed.
func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// --- In-memory fakes ---
// The rotation and containment flows are stateful (issue, consume, revoke),
// so the ledger fake keeps real records instead of scripted expectations.

type fakeUserRepo struct {
	users map[int]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int]*model.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) CreateUser(user *model.User) error {
	user.ID = len(f.users) + 1
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) GetUserByID(id int) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) GetAllUsers() ([]*model.User, error) { return nil, nil }
func (f *fakeUserRepo) UpdateUser(*model.User) error        { return nil }
func (f *fakeUserRepo) UpdateUserRole(int, string) error    { return nil }
func (f *fakeUserRepo) SoftDeleteUser(int) (bool, error)    { return false, nil }

type fakeTokenRepo struct {
	records []*model.RefreshToken
	nextID  int
	// afterGetActive runs after GetActiveByUserID returns, which lets a test
	// interleave a concurrent rotation between match and revoke.
	afterGetActive func()
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{nextID: 1}
}

func (f *fakeTokenRepo) Create(token *model.RefreshToken) error {
	token.ID = f.nextID
	f.nextID++
	token.CreatedAt = time.Now()
	f.records = append(f.records, token)
	return nil
}

func (f *fakeTokenRepo) GetActiveByUserID(userID int) ([]*model.RefreshToken, error) {
	var active []*model.RefreshToken
	for _, rec := range f.records {
		if rec.UserID == userID && !rec.Revoked && rec.ExpiresAt.After(time.Now()) {
			copied := *rec
			active = append(active, &copied)
		}
	}
	if f.afterGetActive != nil {
		f.afterGetActive()
	}
	return active, nil
}

func (f *fakeTokenRepo) Revoke(id int) (bool, error) {
	for _, rec := range f.records {
		if rec.ID == id && !rec.Revoked {
			rec.Revoked = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokenRepo) RevokeAllByUserID(userID int) error {
	for _, rec := range f.records {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
	return nil
}

func (f *fakeTokenRepo) DeleteExpired() (int64, error) {
	var kept []*model.RefreshToken
	var deleted int64
	for _, rec := range f.records {
		if rec.ExpiresAt.After(time.Now()) {
			kept = append(kept, rec)
		} else {
			deleted++
		}
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeTokenRepo) activeCount(userID int) int {
	count := 0
	for _, rec := range f.records {
		if rec.UserID == userID && !rec.Revoked && rec.ExpiresAt.After(time.Now()) {
			count++
		}
	}
	return count
}

// --- Helpers ---

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:    "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

// hashPw hashes at minimum cost so tests stay fast; CheckPasswordHash does
// not depend on the cost the hash was created with.
func hashPw(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return string(hash)
}

func testUser(t *testing.T, id int, email, password string) *model.User {
	return &model.User{
		ID:       id,
		Name:     "Test User",
		Email:    email,
		Password: hashPw(t, password),
		Role:     string(model.RoleMember),
	}
}

// --- Tests ---

func TestAuthService_HashAndCheckPassword(t *testing.T) {
	authService := NewAuthService(nil, nil, testJWTConfig())
	password := "mySecretPassword123"

	hashedPassword, err := authService.HashPassword(password)
	assert.NoError(t, err)
	assert.NotEqual(t, password, hashedPassword)

	assert.True(t, authService.CheckPasswordHash(password, hashedPassword))
	assert.False(t, authService.CheckPasswordHash("notMyPassword", hashedPassword))

	// A malformed stored hash verifies false instead of crashing.
	assert.False(t, authService.CheckPasswordHash(password, "not-a-bcrypt-hash"))
}

func TestAuthService_TokenExpiry(t *testing.T) {
	cfg := testJWTConfig()
	authService := NewAuthService(nil, nil, cfg)
	user := testUser(t, 1, "a@x.com", "pw1234")

	expired, err := authService.generateToken(user, cfg.RefreshSecret, -time.Minute)
	assert.NoError(t, err)

	_, err = authService.VerifyToken(expired, cfg.RefreshSecret)
	assert.Error(t, err)
}

func TestAuthService_CrossSecretRejection(t *testing.T) {
	cfg := testJWTConfig()
	authService := NewAuthService(nil, nil, cfg)
	user := testUser(t, 1, "a@x.com", "pw1234")

	accessToken, err := authService.GenerateAccessToken(user)
	assert.NoError(t, err)
	refreshToken, err := authService.GenerateRefreshToken(user)
	assert.NoError(t, err)

	// Each class verifies only under its own secret.
	_, err = authService.VerifyToken(accessToken, cfg.RefreshSecret)
	assert.Error(t, err)
	_, err = authService.VerifyToken(refreshToken, cfg.AccessSecret)
	assert.Error(t, err)

	_, err = authService.VerifyToken(accessToken, cfg.AccessSecret)
	assert.NoError(t, err)
	_, err = authService.VerifyToken(refreshToken, cfg.RefreshSecret)
	assert.NoError(t, err)
}

func TestAuthService_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		user := testUser(t, 1, "a@x.com", "pw1234")
		tokenRepo := newFakeTokenRepo()
		authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

		pair, err := authService.Login("a@x.com", "pw1234", "10.0.0.1", "go-test")
		assert.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		assert.Equal(t, 1, tokenRepo.activeCount(user.ID))
		record := tokenRepo.records[0]
		assert.Equal(t, "10.0.0.1", record.IPAddress)
		assert.Equal(t, "go-test", record.UserAgent)
		// The ledger must never hold the raw token.
		assert.NotEqual(t, pair.RefreshToken, record.TokenHash)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		user := testUser(t, 1, "a@x.com", "pw1234")
		authService := NewAuthService(newFakeUserRepo(user), newFakeTokenRepo(), testJWTConfig())

		_, errNoUser := authService.Login("nobody@x.com", "pw1234", "", "")
		_, errBadPass := authService.Login("a@x.com", "wrong", "", "")

		assert.ErrorIs(t, errNoUser, ErrInvalidCredentials)
		assert.ErrorIs(t, errBadPass, ErrInvalidCredentials)
		assert.Equal(t, errNoUser.Error(), errBadPass.Error())
	})

	t.Run("empty stored hash fails closed", func(t *testing.T) {
		user := testUser(t, 1, "a@x.com", "pw1234")
		user.Password = ""
		authService := NewAuthService(newFakeUserRepo(user), newFakeTokenRepo(), testJWTConfig())

		_, err := authService.Login("a@x.com", "", "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

// Tokens minted back-to-back land inside the same wall-clock second, where
// iat and exp no longer vary. Each issue must still produce a distinct token,
// otherwise a consumed refresh token would match its successor's ledger
// record and rotation would stop consuming anything.
func TestAuthService_TokensAreUniqueWithinOneSecond(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	a, err := authService.GenerateRefreshToken(user)
	assert.NoError(t, err)
	b, err := authService.GenerateRefreshToken(user)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Immediate rotation: login and refresh in the same second. The rotated
	// pair must differ from the consumed one, and the consumed token must be
	// dead even though no second boundary was crossed.
	first, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	second, err := authService.Refresh(first.RefreshToken, "", "")
	assert.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	_, err = authService.Refresh(first.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_SingleActiveSession(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	first, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)
	_, err = authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	// The second login superseded the first session.
	assert.Equal(t, 1, tokenRepo.activeCount(user.ID))

	_, err = authService.Refresh(first.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_RotationInvalidatesPredecessor(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	first, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	second, err := authService.Refresh(first.RefreshToken, "", "")
	assert.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, tokenRepo.activeCount(user.ID))

	// Reusing the consumed token is a replay: it fails and tears down every
	// active session for the user, including the just-issued one.
	_, err = authService.Refresh(first.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, 0, tokenRepo.activeCount(user.ID))

	_, err = authService.Refresh(second.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_ConcurrentRotationLoserIsContained(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	pair, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	// Simulate a concurrent refresh winning the rotation between this
	// request's active-record read and its conditional revoke.
	tokenRepo.afterGetActive = func() {
		tokenRepo.afterGetActive = nil
		for _, rec := range tokenRepo.records {
			rec.Revoked = true
		}
	}

	_, err = authService.Refresh(pair.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, 0, tokenRepo.activeCount(user.ID))
}

func TestAuthService_RefreshRejectsUnknownUser(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	pair, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	// Account removed after issuance; the lineage dies with it.
	delete(authService.userRepo.(*fakeUserRepo).users, user.ID)

	_, err = authService.Refresh(pair.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_RefreshRejectsAccessToken(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	authService := NewAuthService(newFakeUserRepo(user), newFakeTokenRepo(), testJWTConfig())

	pair, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	_, err = authService.Refresh(pair.AccessToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	pair, err := authService.Login("a@x.com", "pw1234", "", "")
	assert.NoError(t, err)

	assert.NoError(t, authService.Logout(user.ID))
	assert.NoError(t, authService.Logout(user.ID))
	assert.Equal(t, 0, tokenRepo.activeCount(user.ID))

	_, err = authService.Refresh(pair.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_PurgeExpiredTokens(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	tokenRepo.Create(&model.RefreshToken{UserID: user.ID, TokenHash: "h1", ExpiresAt: time.Now().Add(-time.Hour)})
	tokenRepo.Create(&model.RefreshToken{UserID: user.ID, TokenHash: "h2", ExpiresAt: time.Now().Add(-time.Minute), Revoked: true})
	tokenRepo.Create(&model.RefreshToken{UserID: user.ID, TokenHash: "h3", ExpiresAt: time.Now().Add(time.Hour)})

	deleted, err := authService.PurgeExpiredTokens()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Len(t, tokenRepo.records, 1)
}

// Full lifecycle from the testable-properties scenario: login, rotate, rotate
// again, then replay the earliest token.
func TestAuthService_SessionLifecycle(t *testing.T) {
	user := testUser(t, 1, "a@x.com", "pw1234")
	tokenRepo := newFakeTokenRepo()
	authService := NewAuthService(newFakeUserRepo(user), tokenRepo, testJWTConfig())

	first, err := authService.Login("a@x.com", "pw1234", "10.0.0.1", "go-test")
	assert.NoError(t, err)

	second, err := authService.Refresh(first.RefreshToken, "10.0.0.1", "go-test")
	assert.NoError(t, err)

	// The fresh token keeps working as long as it has not been consumed.
	third, err := authService.Refresh(second.RefreshToken, "10.0.0.1", "go-test")
	assert.NoError(t, err)
	assert.NotEmpty(t, third.AccessToken)

	// Replaying the first token kills the whole lineage.
	_, err = authService.Refresh(first.RefreshToken, "10.0.0.1", "go-test")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, 0, tokenRepo.activeCount(user.ID))

	_, err = authService.Refresh(third.RefreshToken, "10.0.0.1", "go-test")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}
