package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/revoshop/internal/db"
	"github.com/Skotchmaster/revoshop/internal/events"
)

var testSecret = []byte("test-session-secret")

func newService(t *testing.T) (*Service, *events.Recorder) {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, "sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	repo := &GormRepo{DB: gdb}
	require.NoError(t, SeedUsers(ctx, repo, DefaultUsers))

	rec := &events.Recorder{}
	return &Service{Repo: repo, Secret: testSecret, TTL: time.Hour, Publisher: rec}, rec
}

func TestPassword(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.True(t, CheckPassword(hash, "password123"))
	assert.False(t, CheckPassword(hash, "password124"))
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
		wantRole string
		wantName string
	}{
		{name: "user", email: "john@example.com", password: "password123", wantRole: RoleUser, wantName: "John Doe"},
		{name: "admin", email: "admin@example.com", password: "admin123", wantRole: RoleAdmin, wantName: "Admin User"},
		{name: "email is case insensitive", email: "  John@Example.com ", password: "password123", wantRole: RoleUser, wantName: "John Doe"},
		{name: "wrong password", email: "john@example.com", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "password123", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newService(t)

			res, err := svc.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)

			claims, err := ClaimsFromToken(res.Token, testSecret)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, claims.Role)
			assert.Equal(t, tt.wantName, claims.Name)
			assert.Equal(t, res.User.ID.String(), claims.Subject)
			assert.NotEmpty(t, claims.ID)
			assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
		})
	}
}

func TestLogin_PublishesEvent(t *testing.T) {
	t.Parallel()
	svc, rec := newService(t)

	res, err := svc.Login(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, events.UserTopic, msgs[0].Topic)
	assert.Equal(t, res.User.ID.String(), msgs[0].Key)

	var env events.Envelope[events.UserSession]
	require.NoError(t, json.Unmarshal(msgs[0].Body, &env))
	require.NoError(t, env.Validate(events.EventUserLoggedIn, 1))
	assert.Equal(t, "admin@example.com", env.Payload.Email)
	assert.Equal(t, RoleAdmin, env.Payload.Role)
}

func TestLogin_PublishFailureDoesNotFailLogin(t *testing.T) {
	t.Parallel()
	svc, rec := newService(t)
	rec.Err = errors.New("broker down")

	_, err := svc.Login(context.Background(), "john@example.com", "password123")
	assert.NoError(t, err)
}

func TestParseSession_Logout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, rec := newService(t)

	res, err := svc.Login(ctx, "john@example.com", "password123")
	require.NoError(t, err)

	claims, err := svc.ParseSession(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", claims.Email)

	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.ParseSession(ctx, res.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	msgs := rec.Messages()
	require.Len(t, msgs, 2)
	var env events.Envelope[events.UserSession]
	require.NoError(t, json.Unmarshal(msgs[1].Body, &env))
	assert.NoError(t, env.Validate(events.EventUserLoggedOut, 1))
}

func TestLogout_NilClaims(t *testing.T) {
	t.Parallel()
	svc, rec := newService(t)
	assert.NoError(t, svc.Logout(context.Background(), nil))
	assert.Empty(t, rec.Messages())
}

func TestParseSession_Rejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	unknown, err := SignSession(SessionClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "not-stored",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	require.NoError(t, err)

	expired, err := SignSession(SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testSecret)
	require.NoError(t, err)

	forged, err := SignSession(SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "forged",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, []byte("other-secret"))
	require.NoError(t, err)

	noExpiry, err := SignSession(SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ID: "x"}}, testSecret)
	require.NoError(t, err)

	_, err = svc.ParseSession(ctx, unknown)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	for _, tok := range []string{expired, forged, noExpiry, "garbage"} {
		_, err = svc.ParseSession(ctx, tok)
		assert.Error(t, err)
	}
}

func TestSeedUsers_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, SeedUsers(ctx, svc.Repo, DefaultUsers))

	var count int64
	require.NoError(t, svc.Repo.DB.Table("users").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestParseSeedUsers(t *testing.T) {
	t.Parallel()

	users, err := ParseSeedUsers([]byte(`
users:
  - email: " Jane@Example.com "
    name: Jane
    password: secret
  - email: boss@example.com
    password: secret
    role: admin
`))
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "jane@example.com", users[0].Email)
	assert.Equal(t, RoleUser, users[0].Role)
	assert.Equal(t, RoleAdmin, users[1].Role)

	_, err = ParseSeedUsers([]byte("users:\n  - email: a@b.c\n"))
	assert.Error(t, err)

	_, err = ParseSeedUsers([]byte("users:\n  - email: a@b.c\n    password: x\n    role: root\n"))
	assert.Error(t, err)

	_, err = ParseSeedUsers([]byte("users: [oops"))
	assert.Error(t, err)
}

func TestLoadSeedUsers_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	users, err := LoadSeedUsers(t.TempDir() + "/missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultUsers, users)
}

func TestSessionClaims_IsAdmin(t *testing.T) {
	t.Parallel()
	var nilClaims *SessionClaims
	assert.False(t, nilClaims.IsAdmin())
	assert.False(t, (&SessionClaims{Role: RoleUser}).IsAdmin())
	assert.True(t, (&SessionClaims{Role: RoleAdmin}).IsAdmin())
}
