package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "maturity-navigator-api/configs"
	"maturity-navigator-api/pkg/assessment"
	"maturity-navigator-api/pkg/models"
	"maturity-navigator-api/pkg/report"
	"maturity-navigator-api/pkg/services"
	"maturity-navigator-api/pkg/storage"
)

const testAnalysis = `{"productivity":{"score":3.0,"strengths":["Copilot rollout"],"opportunities":["Track ROI"]},
"valueCreation":{"score":2.0,"strengths":["Pilot feature"],"opportunities":["Customer research"]},
"businessModel":{"score":1.0,"strengths":["Curious leadership"],"opportunities":["New revenue"]}}`

type stubCompleter struct {
	mu  sync.Mutex
	err error
}

func (s *stubCompleter) Complete(_ context.Context, systemPrompt string, turns []models.ConversationTurn, _ models.ModelConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if strings.HasPrefix(systemPrompt, "Analyze") {
		return testAnalysis, nil
	}
	return "Thanks! Next question.", nil
}

type testEnv struct {
	router    *gin.Engine
	completer *stubCompleter
	service   *services.AssessmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	queue := services.NewPersistQueue(store, 32, nil)
	t.Cleanup(func() { queue.Close(context.Background()) })

	completer := &stubCompleter{}
	svc, err := services.NewAssessmentService(services.AssessmentServiceOptions{
		Settings:  assessment.DefaultSettings(),
		Completer: completer,
		Store:     store,
		Queue:     queue,
	})
	require.NoError(t, err)

	ah := NewAssessmentHandler(svc)
	sh := NewSpeechHandler(services.NewSpeechService(nil, "tts-1", "alloy", "whisper-1", nil))
	admin := NewAdminHandler(&config.Config{AdminUsername: "admin", AdminPassword: "secret"}, svc)

	r := gin.New()
	r.GET("/health", admin.HealthCheck)
	v1 := r.Group("/api/v1")
	v1.Use(admin.MaintenanceMiddleware())
	v1.POST("/assessment/analyze", ah.Analyze)
	v1.POST("/chat", ah.Chat)
	v1.POST("/speech", sh.Speech)
	v1.POST("/transcribe", sh.Transcribe)
	v1.POST("/email", ah.Email)
	v1.GET("/questions", ah.Questions)
	v1.POST("/sessions", ah.StartSession)
	v1.GET("/sessions/:id", ah.GetSession)
	v1.POST("/sessions/:id/answer", ah.Answer)
	v1.POST("/sessions/:id/complete", ah.Complete)
	v1.POST("/sessions/:id/reset", ah.Reset)
	v1.PUT("/sessions/:id/playback", ah.Playback)
	v1.GET("/assessments", ah.ListAssessments)
	v1.GET("/assessments/:id", ah.GetAssessment)
	v1.DELETE("/assessments/:id", ah.DeleteAssessment)
	v1.GET("/assessments/:id/export", ah.ExportAssessment)
	v1.POST("/admin/maintenance/start", admin.StartMaintenance)
	v1.POST("/admin/maintenance/stop", admin.StopMaintenance)

	return &testEnv{router: r, completer: completer, service: svc}
}

func (e *testEnv) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t)

	body := `{"userInfo":{"name":"Ana","industry":"Retail"},"responses":[{"questionId":"prod-team-adoption","answer":"Most of the team","timestamp":1}]}`
	w := env.do(http.MethodPost, "/api/v1/assessment/analyze", "", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Assessment models.AssessmentResult `json:"assessment"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 3.0, resp.Assessment.Productivity.Score)
	assert.Equal(t, 1.0, resp.Assessment.BusinessModel.Score)
	assert.Equal(t, 1.9, resp.Assessment.Overall.Score)
	assert.Equal(t, "Experimenting", resp.Assessment.Overall.LevelName)
	assert.Equal(t, "Ana", resp.Assessment.UserInfo.Name)
	assert.Equal(t, "Not specified", resp.Assessment.UserInfo.Role)
}

func TestAnalyze_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]string{
		"missing responses":  `{"userInfo":{}}`,
		"missing userInfo":   `{"responses":[]}`,
		"responses not list": `{"userInfo":{},"responses":"nope"}`,
		"malformed":          `{`,
	} {
		t.Run(name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/assessment/analyze", "", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAnalyze_ServiceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.completer.err = errors.New("upstream")

	w := env.do(http.MethodPost, "/api/v1/assessment/analyze", "", `{"userInfo":{},"responses":[]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/chat", "", `{"conversation":[{"role":"user","content":"Hi"}],"context":"productivity"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"Thanks! Next question."}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/v1/chat", "", `{"context":"productivity"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/chat", "", `{"conversation":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/chat", "", `{"conversation":[{"role":"robot","content":"Hi"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpeech_Simulated(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/speech", "", `{"text":"Hello there"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"`+services.SimulatedSpeechMessage+`"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/v1/speech", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscribe(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "answer.webm")
	require.NoError(t, err)
	part.Write([]byte("fake audio"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"`+services.SimulatedTranscription+`"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/v1/transcribe", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmail(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/email", "user-1", `{"email":"ana@example.com","assessment":{"overall":{"score":2.5}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Assessment report sent to ana@example.com (simulated)"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/v1/email", "", `{"assessment":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email is required")

	w = env.do(http.MethodPost, "/api/v1/email", "", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Assessment data is required")
}

func TestQuestions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/questions", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Questions assessment.QuestionBank `json:"questions"`
		Flow      map[string]int          `json:"flow"`
	}
	decode(t, w, &resp)
	assert.Len(t, resp.Questions.UserInfo, 5)
	assert.Equal(t, 12, resp.Flow["total"])
	assert.Equal(t, 4, resp.Flow["minQuestionsForCompletion"])
}

func startSession(t *testing.T, env *testEnv, user string) services.SessionState {
	t.Helper()
	w := env.do(http.MethodPost, "/api/v1/sessions", user, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var st services.SessionState
	decode(t, w, &st)
	return st
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	st := startSession(t, env, "user-1")
	assert.Equal(t, "user-name-role", st.Question.ID)

	for i := 0; i < 4; i++ {
		w := env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/answer", "user-1", `{"answer":"answer"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := env.do(http.MethodGet, "/api/v1/sessions/"+st.ID, "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state services.SessionState
	decode(t, w, &state)
	assert.Equal(t, 4, state.Answered)
	assert.True(t, state.CanComplete)
	assert.Equal(t, assessment.PhaseProductivity, state.Phase)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/complete", "user-1", `{"force":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	var done struct {
		Assessment models.AssessmentResult `json:"assessment"`
	}
	decode(t, w, &done)
	assert.Equal(t, 1.9, done.Assessment.Overall.Score)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/answer", "user-1", `{"answer":"late"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, "/api/v1/assessments", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Assessments []models.AssessmentSummary `json:"assessments"`
		Count       int                        `json:"count"`
	}
	decode(t, w, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, models.StatusCompleted, list.Assessments[0].Status)
	require.NotNil(t, list.Assessments[0].Overall)

	w = env.do(http.MethodGet, "/api/v1/assessments/"+st.ID+"/export", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), report.FileName(models.AssessmentRecord{ID: st.ID}))

	w = env.do(http.MethodDelete, "/api/v1/assessments/"+st.ID, "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/api/v1/assessments/"+st.ID, "user-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComplete_RefusedBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	st := startSession(t, env, "user-1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/complete", "user-1", `{"force":true}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp struct {
		Error     string `json:"error"`
		Threshold int    `json:"threshold"`
		Remaining int    `json:"remaining"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 4, resp.Threshold)
	assert.Equal(t, 4, resp.Remaining)
	assert.Contains(t, resp.Error, "4")

	w = env.do(http.MethodGet, "/api/v1/assessments/"+st.ID+"/export", "user-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnswer_Errors(t *testing.T) {
	env := newTestEnv(t)
	st := startSession(t, env, "user-1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/answer", "user-1", `{"answer":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.completer.err = errors.New("upstream")
	w = env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/answer", "user-1", `{"answer":"Ana"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sessions/missing/answer", "user-1", `{"answer":"Ana"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOtherUsersAssessmentIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	st := startSession(t, env, "user-1")

	for _, path := range []string{"/api/v1/sessions/" + st.ID, "/api/v1/assessments/" + st.ID} {
		w := env.do(http.MethodGet, path, "user-2", "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.NotContains(t, w.Body.String(), st.ID)
	}
	w := env.do(http.MethodGet, "/api/v1/sessions/"+st.ID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetAndPlayback(t *testing.T) {
	env := newTestEnv(t)
	st := startSession(t, env, "user-1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/answer", "user-1", `{"answer":"Ana"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPut, "/api/v1/sessions/"+st.ID+"/playback", "user-1", `{"playing":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	var state services.SessionState
	decode(t, w, &state)
	assert.True(t, state.Playing)

	w = env.do(http.MethodPut, "/api/v1/sessions/"+st.ID+"/playback", "user-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+st.ID+"/reset", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.Equal(t, 0, state.Answered)
	assert.False(t, state.Playing)
}

func TestMaintenanceMode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/admin/maintenance/start", "", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/admin/maintenance/start", "", `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = env.do(http.MethodPost, "/api/v1/sessions", "user-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = env.do(http.MethodGet, "/api/v1/questions", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/admin/maintenance/stop", "", `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
