package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.Vote("agree")
	m.Vote("agree")
	m.Email("digest", 30*time.Millisecond, nil)
	m.Email("digest", time.Millisecond, errors.New("smtp down"))
	m.CascadeStep("comment", nil)
	m.DigestEnqueued(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("agree")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsTotal.WithLabelValues("digest", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DigestEventsQueued))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `feedback_cascade_steps_total{result="done",step="comment"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submission("bug", "public")
		m.Comment("admin")
		m.Upload("pending")
		m.Email("reply", time.Second, nil)
	})
}
