package di

import (
	"context"
	"path/filepath"
	"testing"

	"FinCast/internal/domain/models"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

func parseConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestInitializeAppWithLocalBackends(t *testing.T) {
	cfg := parseConfig(t, "log:\n  level: error\n")
	app, cleanup, err := InitializeApp(cfg)
	if err != nil {
		t.Fatalf("InitializeApp: %v", err)
	}
	defer cleanup()
	if app == nil {
		t.Fatalf("nil app")
	}
}

func TestProvideStorageSQLite(t *testing.T) {
	cfg := parseConfig(t, "storage:\n  store: sqlite\n  series: memory\n")
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "fc.db")

	st, cleanup, err := ProvideStorage(cfg, applogger.Nop())
	if err != nil {
		t.Fatalf("ProvideStorage: %v", err)
	}
	defer cleanup()
	if _, ok := st.Configs.(*internalrepo.SQLiteStore); !ok {
		t.Fatalf("configs backend = %T", st.Configs)
	}
	if _, ok := st.Series.(*internalrepo.SQLiteStore); !ok {
		t.Fatalf("series backend = %T", st.Series)
	}
	if _, err := st.Users.FindUser(context.Background(), 1); err == nil {
		t.Fatalf("empty store found a user")
	}
}

func TestProvideQueueFallsBackToLocal(t *testing.T) {
	cfg := parseConfig(t, "")
	st, cleanup, err := ProvideStorage(cfg, applogger.Nop())
	if err != nil {
		t.Fatalf("ProvideStorage: %v", err)
	}
	defer cleanup()
	jobs := ProvideForecastJobs(st, nil, applogger.Nop())

	w := ProvideQueue(cfg, jobs, nil, applogger.Nop())
	if _, ok := w.(*queue.LocalQueue); !ok {
		t.Fatalf("queue = %T, want *queue.LocalQueue", w)
	}
	_, err = jobs.Submit(context.Background(), usecase.JobPayload{
		UserID:      1,
		Kind:        models.JobKindGenerate,
		Configs:     []models.ForecastConfig{{Algorithm: models.AlgorithmSMA}},
		HorizonDays: 3,
	})
	if err != nil {
		t.Fatalf("Submit through bound queue: %v", err)
	}
}

func TestProvideSchedulerDisabled(t *testing.T) {
	cfg := parseConfig(t, "")
	s, err := ProvideScheduler(cfg, nil, &Storage{}, applogger.Nop())
	if err != nil || s != nil {
		t.Fatalf("scheduler = %v, err = %v", s, err)
	}
}

func TestProvidePublisherDisabled(t *testing.T) {
	cfg := parseConfig(t, "")
	pub, cleanup, err := ProvidePublisher(cfg, applogger.Nop())
	if err != nil {
		t.Fatalf("ProvidePublisher: %v", err)
	}
	defer cleanup()
	if _, ok := pub.(internalrepo.NopPublisher); !ok {
		t.Fatalf("publisher = %T", pub)
	}
	if err := pub.PublishForecast(context.Background(), models.ForecastEvent{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
