package repositories

import (
	"chat-relay/errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newUserRepository(t *testing.T) *UserRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func Test_CreateUser_Then_Get(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	id, err := repo.CreateUser("alice", "hashed-secret", 7, 31)
	req.NoError(err)
	req.NotZero(id)

	user, err := repo.GetUser("alice")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("alice", user.Username)
	req.Equal("hashed-secret", user.Credential)
	req.Equal(int64(7), user.PrivateKey)
	req.Equal(int64(31), user.PublicKey)
}

func Test_CreateUser_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	// Given a registered username
	_, err := repo.CreateUser("alice", "first", 2, 3)
	req.NoError(err)

	// When registering it again
	_, err = repo.CreateUser("alice", "second", 4, 5)

	// Then the second creation fails and the original row is untouched
	req.ErrorIs(err, errors.ErrDuplicateUsername)

	user, err := repo.GetUser("alice")
	req.NoError(err)
	req.Equal("first", user.Credential)
}

func Test_GetUser_Unknown(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	_, err := repo.GetUser("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_ListUsers_Sorted_By_Username(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := repo.CreateUser(name, "x", 2, 3)
		req.NoError(err)
	}

	users, err := repo.ListUsers()
	req.NoError(err)
	req.Len(users, 3)
	req.Equal("alice", users[0].Username)
	req.Equal("bob", users[1].Username)
	req.Equal("carol", users[2].Username)
}
