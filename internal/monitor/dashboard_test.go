package monitor

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/fyrsmithlabs/ragd/pkg/api/v1"
)

func sampleStatus() v1.StatusResponse {
	return v1.StatusResponse{
		Status:  "ok",
		Version: "test",
		Services: map[string]string{
			"ollama":     "ok",
			"embeddings": "ok",
		},
		Counts: v1.StatusCounts{Tenants: 2, Documents: 4, Chunks: 37},
		Chat: v1.ChatCounters{
			Answered:  12,
			Greetings: 2,
			RAG:       8,
			Fallbacks: 2,
			AvgRSQ:    0.58,
			LastRSQ:   0.61,
		},
		UptimeS: 3660,
	}
}

func TestNewModel(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	assert.Equal(t, "http://localhost:8080", m.baseURL)
	assert.Equal(t, 5*time.Second, m.interval)
	assert.Empty(t, m.rateHistory)
	assert.Empty(t, m.rsqHistory)
}

func TestUpdate_StatusMsg(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	updated, cmd := m.Update(statusMsg(sampleStatus()))
	assert.Nil(t, cmd)

	got := updated.(Model)
	assert.Equal(t, "ok", got.status.Status)
	assert.Equal(t, int64(12), got.prevAnswered)
	assert.False(t, got.lastUpdate.IsZero())
	assert.NoError(t, got.err)
	assert.Len(t, got.rsqHistory, 1)
	assert.Equal(t, 0.58, got.rsqHistory[0])
}

func TestUpdate_DerivesAnswerRate(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	first := sampleStatus()
	updated, _ := m.Update(statusMsg(first))
	m = updated.(Model)
	// Backdate the poll so the delta maps to a measurable window.
	m.prevPoll = time.Now().Add(-time.Minute)

	second := first
	second.Chat.Answered = 18
	updated, _ = m.Update(statusMsg(second))
	m = updated.(Model)

	// 6 new answers over ~1 minute.
	assert.InDelta(t, 6.0, m.answerRate, 0.5)
	assert.GreaterOrEqual(t, m.ratePeak, m.answerRate)
}

func TestUpdate_ErrMsg(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	updated, _ := m.Update(errMsg(errors.New("connection refused")))
	got := updated.(Model)
	require.Error(t, got.err)

	view := got.View()
	assert.Contains(t, view, "Cannot reach ragd")
	assert.Contains(t, view, "connection refused")
}

func TestUpdate_StatusClearsError(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	updated, _ := m.Update(errMsg(errors.New("boom")))
	updated, _ = updated.(Model).Update(statusMsg(sampleStatus()))

	assert.NoError(t, updated.(Model).err)
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := NewModel("http://localhost:8080", 5*time.Second)

			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			}
			updated, cmd := m.Update(msg)
			assert.True(t, updated.(Model).quitting)
			assert.NotNil(t, cmd)
			assert.Empty(t, updated.(Model).View())
		})
	}
}

func TestUpdate_RefreshKey(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.NotNil(t, cmd)
}

func TestUpdate_TickSchedulesNextPoll(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)

	_, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestView_Dashboard(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)
	updated, _ := m.Update(statusMsg(sampleStatus()))

	view := updated.(Model).View()
	assert.Contains(t, view, "ragd Monitor")
	assert.Contains(t, view, "HEALTHY")
	assert.Contains(t, view, "1h 1m")
	assert.Contains(t, view, "Corpus")
	assert.Contains(t, view, "Answers")
	assert.Contains(t, view, "Retrieval Confidence")
	assert.Contains(t, view, "0.580")
	assert.Contains(t, view, "ollama")
	assert.Contains(t, view, "embeddings")
	assert.Contains(t, view, "quit")
}

func TestView_DegradedStatus(t *testing.T) {
	m := NewModel("http://localhost:8080", 5*time.Second)
	status := sampleStatus()
	status.Status = "degraded"
	status.Services["ollama"] = "dial tcp: connection refused"

	updated, _ := m.Update(statusMsg(status))
	view := updated.(Model).View()
	assert.Contains(t, view, "DEGRADED")
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, 5.0, h[0])
}

func TestCreateSparkline_Empty(t *testing.T) {
	assert.Contains(t, createSparkline(nil), "no data")
}
