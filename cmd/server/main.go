package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/app"
)

// shutdownTimeout 停止時にリクエストと保存待ちキューを待つ時間
const shutdownTimeout = 15 * time.Second

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ .envファイルが見つからないか読み込めませんでした: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.LoadConfig()); err != nil {
		log.Printf("❌ サーバーが異常終了しました: %v", err)
		os.Exit(1)
	}
}

// run はctxがキャンセルされるまでAPIサーバーを動かし、終了時に保存待ちのスナップショットを書き込みます。
func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}

	srv := newServer(ctx, cfg, a)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("✅ AI Maturity Navigator API を %s で起動します", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Printf("サーバーを停止しています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), a.Close(shutdownCtx))
	})
	return g.Wait()
}

// newServer シグナルで停止してもリクエスト中の処理はShutdownが待つ間続けられるよう、
// ベースコンテキストはctxのキャンセルを引き継ぎません。
func newServer(ctx context.Context, cfg *config.Config, a *app.App) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return base
		},
	}
}
