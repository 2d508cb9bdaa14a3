package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rmaia/authd/internal/common"
	"github.com/rmaia/authd/internal/dbx"
	"github.com/rmaia/authd/internal/server/auth"
	"github.com/rmaia/authd/internal/server/config"
	"github.com/rmaia/authd/internal/server/models"
	refreshtokensrepo "github.com/rmaia/authd/internal/server/repositories/refreshtokens"
	usersrepo "github.com/rmaia/authd/internal/server/repositories/users"
)

// --- helpers ---

const testSecret = "k"

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newSessionService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *SessionService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
	}
	return NewSessionService(db, rm, cfg)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// fakeRefreshRepo is a map-backed store with per-operation error injection.
type fakeRefreshRepo struct {
	records map[string]*models.RefreshToken // keyed by id
	nextID  int

	findErr   error
	createErr error
	delErr    error

	deleted []string
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{records: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, rt *models.RefreshToken) (*models.RefreshToken, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, r := range f.records {
		if r.UserID == rt.UserID || r.Token == rt.Token {
			return nil, fmt.Errorf("db error: %w", errors.New("duplicate key value violates unique constraint"))
		}
	}
	f.nextID++
	rt.ID = "rt-" + strconv.Itoa(f.nextID)
	rt.CreatedAt = time.Now()
	f.records[rt.ID] = rt
	return rt, nil
}

func (f *fakeRefreshRepo) FindByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if rt, ok := f.records[id]; ok {
		return rt, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) FindByUserID(ctx context.Context, userID string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, rt := range f.records {
		if rt.UserID == userID {
			return rt, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, rt := range f.records {
		if rt.Token == token {
			return rt, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, id string) error {
	if f.delErr != nil {
		return f.delErr
	}
	if _, ok := f.records[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.records, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}

// --- Issue ---

func TestIssue_FirstSession(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	tok, err := s.Issue(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if tok == "" {
		t.Fatalf("empty refresh token")
	}
	if len(rm.r.records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(rm.r.records))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestIssue_SecondLoginReplacesFirst(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	first, err := s.Issue(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("first Issue error: %v", err)
	}
	time.Sleep(1100 * time.Millisecond) // distinct iat/exp so the token value changes
	second, err := s.Issue(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("second Issue error: %v", err)
	}

	if len(rm.r.records) != 1 {
		t.Fatalf("expected exactly one record after second login, got %d", len(rm.r.records))
	}
	if first == second {
		t.Fatalf("expected a new token value on rotation")
	}
	for _, rt := range rm.r.records {
		if rt.Token != second {
			t.Fatalf("surviving record must hold the new token")
		}
	}
	if len(rm.r.deleted) != 1 {
		t.Fatalf("expected old record deleted once, got %v", rm.r.deleted)
	}
}

func TestIssue_CreateErrRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newFakeRefreshRepo()
	repo.createErr = errBoom{}
	rm := &fakeRepoManager{r: repo}
	s := newSessionService(t, db, rm)

	_, err := s.Issue(context.Background(), "u1", "alice")
	if err == nil || !regexp.MustCompile(`error creating refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped create error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestIssue_FindErr(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newFakeRefreshRepo()
	repo.findErr = errBoom{}
	rm := &fakeRepoManager{r: repo}
	s := newSessionService(t, db, rm)

	_, err := s.Issue(context.Background(), "u1", "alice")
	if err == nil || !regexp.MustCompile(`error searching refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped find error, got %v", err)
	}
}

// --- Exchange ---

func TestExchange_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	refresh, err := s.Issue(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	access, err := s.Exchange(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Exchange error: %v", err)
	}

	claims, err := auth.ParseToken(access, []byte(testSecret))
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("access token carries wrong user: %q", claims.UserID)
	}

	// the refresh token is not rotated on exchange
	if _, err := rm.r.FindByToken(context.Background(), refresh); err != nil {
		t.Fatalf("refresh record must survive an exchange: %v", err)
	}
}

func TestExchange_UnknownToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	_, err := s.Exchange(context.Background(), "never-issued")
	if !errors.Is(err, common.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExchange_ExpiredTokenSelfHeals(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := newFakeRefreshRepo()
	rm := &fakeRepoManager{r: repo}
	s := newSessionService(t, db, rm)

	expired, err := auth.GenerateToken("u1", "alice", []byte(testSecret), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := repo.Create(context.Background(), &models.RefreshToken{
		UserID: "u1", Token: expired, ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("seeding record: %v", err)
	}

	_, err = s.Exchange(context.Background(), expired)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("stale record must be deleted on failed exchange")
	}
}

func TestExchange_TamperedTokenRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := newFakeRefreshRepo()
	rm := &fakeRepoManager{r: repo}
	s := newSessionService(t, db, rm)

	forged, err := auth.GenerateToken("u1", "alice", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := repo.Create(context.Background(), &models.RefreshToken{
		UserID: "u1", Token: forged, ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("seeding record: %v", err)
	}

	_, err = s.Exchange(context.Background(), forged)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("mis-signed record must be deleted on failed exchange")
	}
}

// --- Revoke ---

func TestRevoke_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	refresh, err := s.Issue(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	revoked, err := s.Revoke(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked.UserID != "u1" || revoked.Token != refresh {
		t.Fatalf("unexpected revoked record: %+v", revoked)
	}

	// the session is gone
	_, err = s.Exchange(context.Background(), refresh)
	if !errors.Is(err, common.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revoke, got %v", err)
	}
}

func TestRevoke_UnknownToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	_, err := s.Revoke(context.Background(), "never-issued")
	if !errors.Is(err, common.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

// --- IssuePair ---

func TestIssuePair_AccessTokenCarriesPrincipal(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{r: newFakeRefreshRepo()}
	s := newSessionService(t, db, rm)

	pair, err := s.IssuePair(context.Background(), "u1", "alice")
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}

	claims, err := auth.ParseToken(pair.AccessToken, []byte(testSecret))
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
