package handler

import (
	"log"
	"net/http"
	"sync"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/app"
)

var (
	application *app.App
	setupErr    error
	once        sync.Once
)

// setupApp はアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*app.App, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		application, setupErr = app.New(cfg, app.Options{})
		if setupErr != nil {
			log.Printf("❌ [setupApp] 初期化に失敗しました: %v", setupErr)
			return
		}
		log.Printf("✅ [setupApp] Ginアプリケーションを初期化しました")
	})
	return application, setupErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	a, err := setupApp()
	if err != nil {
		http.Error(w, `{"error":"Service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	a.Router.ServeHTTP(w, r)

	// 関数が凍結される前に保存待ちのスナップショットを書き込む
	if r.Method != http.MethodGet {
		if err := a.Assessments.Flush(r.Context()); err != nil {
			log.Printf("⚠️ [Handler] スナップショットの保存待ちに失敗しました: %v", err)
		}
	}
}
