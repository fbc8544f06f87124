// Package app は設定からストア、サービス、ルーターを組み立てます。
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/azure"
	"maturity-navigator-api/pkg/router"
	"maturity-navigator-api/pkg/services"
	"maturity-navigator-api/pkg/storage"
)

// App 組み立て済みのアプリケーション
type App struct {
	Router      *gin.Engine
	Assessments *services.AssessmentService
	Speech      *services.SpeechService
	Metrics     *services.Metrics

	store storage.Store
	queue *services.PersistQueue
}

// Options テストなどで外部依存を差し替えるためのオプション
type Options struct {
	Completer services.Completer
	Audio     services.AudioClient
	Store     storage.Store
}

// New 設定からアプリケーションを組み立てる
func New(cfg *config.Config, opts Options) (*App, error) {
	settings, err := config.LoadAssessmentSettings(cfg.AssessmentConfigPath, cfg)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store, err = OpenStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	client := azure.NewOpenAIClient(
		cfg.AzureOpenAIEndpoint,
		cfg.AzureOpenAIAPIKey,
		cfg.AzureOpenAIAPIVersion,
		cfg.AzureOpenAIChatDeploymentName,
		cfg.ProxyURL,
	)
	if !client.Configured() {
		log.Printf("⚠️ Azure OpenAIが設定されていません。音声はシミュレーションモードで動作します")
	}

	completer := opts.Completer
	if completer == nil {
		completer = services.NewAzureOpenAIServiceWithClient(client)
	}
	audio := opts.Audio
	if audio == nil {
		audio = client
	}

	metrics := services.NewMetrics()
	queue := services.NewPersistQueue(store, cfg.PersistQueueSize, metrics)
	assessments, err := services.NewAssessmentService(services.AssessmentServiceOptions{
		Settings:  settings,
		Completer: completer,
		Store:     store,
		Queue:     queue,
		Metrics:   metrics,
		CacheSize: cfg.SessionCacheSize,
	})
	if err != nil {
		queue.Close(context.Background())
		store.Close()
		return nil, err
	}
	speech := services.NewSpeechService(audio, settings.Models.Speech.ModelID, settings.Models.Speech.Voice, settings.Models.Transcribe, metrics)

	r := router.SetupRouter(router.Dependencies{
		Config:      cfg,
		Assessments: assessments,
		Speech:      speech,
		Monitoring:  services.NewMonitoringService(metrics),
		Metrics:     metrics,
	})

	return &App{
		Router:      r,
		Assessments: assessments,
		Speech:      speech,
		Metrics:     metrics,
		store:       store,
		queue:       queue,
	}, nil
}

// Close 保存待ちのスナップショットを書き込んでからストアを閉じる
func (a *App) Close(ctx context.Context) error {
	qErr := a.queue.Close(ctx)
	return errors.Join(qErr, a.store.Close())
}

// OpenStore はSTORE_DRIVERに応じたストアを開きます。
// STORE_FALLBACKが有効な場合、ローカルファイルを二次ストアとして使います。
func OpenStore(cfg *config.Config) (storage.Store, error) {
	if cfg.StoreDriver == "local" {
		return storage.NewLocalStore(cfg.LocalStoreDir)
	}

	switch cfg.StoreDriver {
	case storage.DriverSQLite, storage.DriverMySQL:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	primary, err := storage.OpenSQLStore(cfg.StoreDriver, cfg.StoreDSN)
	if !cfg.StoreFallback {
		if err != nil {
			return nil, err
		}
		return primary, nil
	}

	local, lerr := storage.NewLocalStore(cfg.LocalStoreDir)
	if lerr != nil {
		if err != nil {
			return nil, errors.Join(err, lerr)
		}
		log.Printf("⚠️ ローカルストアを開けないためフォールバックなしで動作します: %v", lerr)
		return primary, nil
	}
	if err != nil {
		log.Printf("⚠️ %s ストアを開けませんでした。ローカルファイルに保存します: %v", cfg.StoreDriver, err)
		return local, nil
	}

	log.Printf("✅ %s ストアを使用します（フォールバック: %s）", cfg.StoreDriver, cfg.LocalStoreDir)
	return storage.NewFallbackStore(primary, local), nil
}
