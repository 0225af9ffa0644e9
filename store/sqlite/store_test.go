package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/store/sqlite"
	"github.com/pitabwire/lingua/store/storetest"
)

func openTempStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "lingua.db"))
	require.NoError(t, err)
	return st
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, openTempStore)
}

func TestSQLiteMemoryConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		return st
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	require.Error(t, err)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	st, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.InsertValue(ctx, resource.Value{Key: "greeting", Locale: "en", Text: "Hello"}))
	require.NoError(t, st.Close())

	st, err = sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	got, err := st.GetValue(ctx, "greeting", "en")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Hello", got.Text)
}

func TestClosedStoreReportsFailure(t *testing.T) {
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = st.GetValue(context.Background(), "greeting", "en")
	require.ErrorIs(t, err, store.ErrStoreFailure)
}
