package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/repository"
)

// Key is the persisted key of the settings blob
const Key = "rskip_settings"

// Service reads and writes user preferences
type Service interface {
	Load(ctx context.Context) (model.Settings, error)
	Save(ctx context.Context, s model.Settings) error
	// Watch registers fn to be called after every successful Save
	Watch(fn func(model.Settings)) (cancel func())
}

type settingsService struct {
	kv     repository.Store
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[int]func(model.Settings)
	nextID   int
}

// NewService creates a new settings service backed by kv
func NewService(kv repository.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &settingsService{
		kv:       kv,
		logger:   logger.With("component", "settings"),
		watchers: make(map[int]func(model.Settings)),
	}
}

// Load returns the stored settings, persisting defaults on first use
func (s *settingsService) Load(ctx context.Context) (model.Settings, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return model.Settings{}, apperrors.Wrap(err, apperrors.CodeStorage, "failed to read settings")
	}

	if !ok {
		defaults := model.DefaultSettings()
		if err := s.write(ctx, defaults); err != nil {
			return model.Settings{}, err
		}
		return defaults, nil
	}

	var stored model.Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Warn("stored settings unreadable, using defaults", "error", err)
		return model.DefaultSettings(), nil
	}

	return stored.WithDefaults(), nil
}

func (s *settingsService) Save(ctx context.Context, settings model.Settings) error {
	settings = settings.WithDefaults()
	if err := s.write(ctx, settings); err != nil {
		return err
	}

	s.mu.Lock()
	watchers := make([]func(model.Settings), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(settings)
	}
	return nil
}

func (s *settingsService) Watch(fn func(model.Settings)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.watchers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *settingsService) write(ctx context.Context, settings model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode settings")
	}
	if err := s.kv.Set(ctx, Key, raw); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to write settings")
	}
	return nil
}
