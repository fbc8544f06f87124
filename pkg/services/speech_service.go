package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"
)

// シミュレーションモードで返す固定メッセージ
const (
	SimulatedSpeechMessage   = "Text-to-speech conversion successful (simulated)"
	SimulatedTranscription   = "This is a simulated transcription of the audio input for demonstration purposes."
	maxSpeechInputCharacters = 4096
)

// ErrEmptyText 音声合成するテキストが空
var ErrEmptyText = errors.New("text is required")

// AudioClient は音声合成と文字起こしを行うクライアントです。*azure.OpenAIClient が実装します。
type AudioClient interface {
	Configured() bool
	Speech(ctx context.Context, deployment, voice, text string) ([]byte, error)
	Transcribe(ctx context.Context, deployment, filename string, audio io.Reader) (string, error)
}

// SpeechService は音声の入出力を担当します。
// Azure OpenAIが設定されていない場合はシミュレーションモードで動作します。
type SpeechService struct {
	client          AudioClient
	speechModel     string
	voice           string
	transcribeModel string
	metrics         *Metrics
	timeout         time.Duration
}

// NewSpeechService 新しいSpeechServiceを作成。clientがnilの場合は常にシミュレーション
func NewSpeechService(client AudioClient, speechModel, voice, transcribeModel string, metrics *Metrics) *SpeechService {
	return &SpeechService{
		client:          client,
		speechModel:     speechModel,
		voice:           voice,
		transcribeModel: transcribeModel,
		metrics:         metrics,
		timeout:         60 * time.Second,
	}
}

// Simulated シミュレーションモードかどうか
func (s *SpeechService) Simulated() bool {
	return s.client == nil || !s.client.Configured()
}

// SpeechResult 音声合成の結果。Simulatedの場合Audioは空です。
type SpeechResult struct {
	Audio     []byte
	Simulated bool
}

// Synthesize はテキストを音声に変換します。
func (s *SpeechService) Synthesize(ctx context.Context, text string) (SpeechResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SpeechResult{}, ErrEmptyText
	}
	if s.Simulated() {
		log.Printf("⚠️ 音声合成はシミュレーションモードです (%d文字)", utf8.RuneCountInString(text))
		return SpeechResult{Simulated: true}, nil
	}
	text = truncateRunes(text, maxSpeechInputCharacters)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	audio, err := s.client.Speech(ctx, s.speechModel, s.voice, text)
	s.metrics.ObserveCompletion("speech", err)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("speech synthesis: %w", err)
	}
	return SpeechResult{Audio: audio}, nil
}

// truncateRunes 先頭からn文字に切り詰める。マルチバイト文字の途中では切らない
func truncateRunes(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// Transcribe は音声をテキストに変換します。シミュレーションモードでは固定の文字列を返します。
func (s *SpeechService) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if s.Simulated() {
		log.Printf("⚠️ 文字起こしはシミュレーションモードです (%s)", filename)
		return SimulatedTranscription, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.client.Transcribe(ctx, s.transcribeModel, filename, audio)
	s.metrics.ObserveCompletion("transcribe", err)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return text, nil
}
