package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mudhumeni-backend/internal/db"
)

func exercisePreferenceStore(t *testing.T, s PreferenceStore) {
	t.Helper()
	ctx := context.Background()

	got, err := s.GetByPhone(ctx, "+263770000001")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.GetByPhone(ctx, "")
	assert.Error(t, err)

	require.NoError(t, s.Put(ctx, &Preference{UserID: "u1", Phone: "+263770000001", Location: "Harare"}))
	require.NoError(t, s.Put(ctx, &Preference{UserID: "u1", Phone: "+263770000001", Location: "Bulawayo", Language: "sn"}))

	got, err = s.GetByPhone(ctx, "+263770000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bulawayo", got.Location)
	assert.Equal(t, "sn", got.Language)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMemoryPreferenceStore(t *testing.T) {
	exercisePreferenceStore(t, NewMemoryPreferenceStore())
}

func TestFilePreferenceStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")
	exercisePreferenceStore(t, NewFilePreferenceStore(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A fresh store reads what the previous one wrote
	got, err := NewFilePreferenceStore(path).GetByPhone(context.Background(), "+263770000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bulawayo", got.Location)
}

func TestFilePreferenceStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFilePreferenceStore(path).GetByPhone(context.Background(), "+263770000001")
	assert.Error(t, err)
}

func TestDatabaseStoreSQLite(t *testing.T) {
	database, err := db.Open(db.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.RunMigrations(context.Background()))

	s := NewDatabaseStore(database)
	exercisePreferenceStore(t, s)

	got, err := s.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "+263770000001", got.Phone)

	assert.Error(t, s.Put(context.Background(), &Preference{Phone: "+263770000002"}))
}

func TestHistoryStoreTrims(t *testing.T) {
	h := NewHistoryStore(3)
	for _, c := range []string{"a", "b", "c", "d"} {
		h.Append("s1", Message{Role: "user", Content: c})
	}
	got := h.Get("s1")
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Content)
	assert.Equal(t, "d", got[2].Content)

	got[0].Content = "changed"
	assert.Equal(t, "b", h.Get("s1")[0].Content)

	assert.Empty(t, h.Get("other"))
	h.Clear("s1")
	assert.Empty(t, h.Get("s1"))
}
