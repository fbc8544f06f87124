package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudioClient struct {
	configured bool
	err        error
	gotText    string
	gotVoice   string
	gotAudio   string
}

func (f *fakeAudioClient) Configured() bool { return f.configured }

func (f *fakeAudioClient) Speech(_ context.Context, _ string, voice, text string) ([]byte, error) {
	f.gotVoice, f.gotText = voice, text
	if f.err != nil {
		return nil, f.err
	}
	return []byte("ID3audio"), nil
}

func (f *fakeAudioClient) Transcribe(_ context.Context, _ string, _ string, audio io.Reader) (string, error) {
	b, _ := io.ReadAll(audio)
	f.gotAudio = string(b)
	if f.err != nil {
		return "", f.err
	}
	return "we use copilot", nil
}

func TestSpeechService_SimulatedWhenUnconfigured(t *testing.T) {
	for name, svc := range map[string]*SpeechService{
		"nil client":   NewSpeechService(nil, "tts-1", "alloy", "whisper-1", nil),
		"unconfigured": NewSpeechService(&fakeAudioClient{}, "tts-1", "alloy", "whisper-1", nil),
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, svc.Simulated())

			res, err := svc.Synthesize(context.Background(), "Hello")
			require.NoError(t, err)
			assert.True(t, res.Simulated)
			assert.Empty(t, res.Audio)

			text, err := svc.Transcribe(context.Background(), "a.webm", strings.NewReader("bytes"))
			require.NoError(t, err)
			assert.Equal(t, SimulatedTranscription, text)
		})
	}
}

func TestSpeechService_Synthesize(t *testing.T) {
	client := &fakeAudioClient{configured: true}
	svc := NewSpeechService(client, "tts-1", "nova", "whisper-1", NewMetrics())

	res, err := svc.Synthesize(context.Background(), "  Welcome back  ")
	require.NoError(t, err)
	assert.False(t, res.Simulated)
	assert.Equal(t, []byte("ID3audio"), res.Audio)
	assert.Equal(t, "Welcome back", client.gotText)
	assert.Equal(t, "nova", client.gotVoice)

	_, err = svc.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	client.err = errors.New("quota")
	_, err = svc.Synthesize(context.Background(), "again")
	assert.Error(t, err)
}

func TestSpeechService_TruncatesOnCharacterBoundary(t *testing.T) {
	client := &fakeAudioClient{configured: true}
	svc := NewSpeechService(client, "tts-1", "nova", "whisper-1", nil)

	_, err := svc.Synthesize(context.Background(), "a"+strings.Repeat("あ", 5000))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(client.gotText))
	assert.Equal(t, maxSpeechInputCharacters, utf8.RuneCountInString(client.gotText))
	assert.True(t, strings.HasSuffix(client.gotText, "あ"))

	_, err = svc.Synthesize(context.Background(), "短いテキスト")
	require.NoError(t, err)
	assert.Equal(t, "短いテキスト", client.gotText)
}

func TestSpeechService_Transcribe(t *testing.T) {
	client := &fakeAudioClient{configured: true}
	svc := NewSpeechService(client, "tts-1", "alloy", "whisper-1", nil)

	text, err := svc.Transcribe(context.Background(), "answer.webm", strings.NewReader("audio-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "we use copilot", text)
	assert.Equal(t, "audio-bytes", client.gotAudio)
}

func TestPlaybackCoordinator(t *testing.T) {
	p := NewPlaybackCoordinator()
	assert.False(t, p.Playing("a"))

	p.Set("a", true)
	assert.True(t, p.Playing("a"))
	assert.False(t, p.Playing("b"))

	p.Forget("a")
	assert.False(t, p.Playing("a"))
}
