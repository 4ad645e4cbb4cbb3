package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/repository"
)

func TestService_LoadPersistsDefaults(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryStore()
	svc := NewService(kv, nil)

	got, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)

	_, ok, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.True(t, ok, "defaults should be written on first load")
}

func TestService_LoadFillsMissingCategories(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key, []byte(`{"globalAutoSkip":false,"categories":{"sponsor":false}}`)))

	got, err := NewService(kv, nil).Load(ctx)
	require.NoError(t, err)

	assert.False(t, got.GlobalAutoSkip)
	assert.False(t, got.Categories[model.CategorySponsor])
	assert.True(t, got.Categories[model.CategoryOutro])
	assert.False(t, got.Categories[model.CategoryGreeting])
}

func TestService_LoadCorruptFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, Key, []byte(`"oops"`)))

	got, err := NewService(kv, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)
}

func TestService_SaveNotifiesWatchers(t *testing.T) {
	ctx := context.Background()
	svc := NewService(repository.NewMemoryStore(), nil)

	var seen []model.Settings
	cancel := svc.Watch(func(s model.Settings) {
		seen = append(seen, s)
	})

	updated := model.DefaultSettings()
	updated.Categories[model.CategoryPreview] = true
	require.NoError(t, svc.Save(ctx, updated))

	require.Len(t, seen, 1)
	assert.True(t, seen[0].Categories[model.CategoryPreview])

	loaded, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, loaded)

	cancel()
	require.NoError(t, svc.Save(ctx, model.DefaultSettings()))
	assert.Len(t, seen, 1, "cancelled watcher must not be called")
}
