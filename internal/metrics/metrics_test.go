package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDecision(t *testing.T) {
	m := Default()
	before := testutil.ToFloat64(m.decisions.WithLabelValues("sendCoins", "dismissed"))
	m.RecordDecision("sendCoins", "dismissed")
	if got := testutil.ToFloat64(m.decisions.WithLabelValues("sendCoins", "dismissed")); got != before+1 {
		t.Fatalf("decisions = %v, want %v", got, before+1)
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{errors.New("boom"), "error"},
		{context.Canceled, "canceled"},
	}
	for _, tc := range cases {
		if got := outcome(tc.err); got != tc.want {
			t.Errorf("outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestGauges(t *testing.T) {
	m := Default()
	m.SetBalance(1234, 2)
	if got := testutil.ToFloat64(m.balance); got != 1234 {
		t.Errorf("balance = %v, want 1234", got)
	}
	if got := testutil.ToFloat64(m.tokens); got != 2 {
		t.Errorf("tokens = %v, want 2", got)
	}
	m.SetLocked(true)
	if got := testutil.ToFloat64(m.locked); got != 1 {
		t.Errorf("locked = %v, want 1", got)
	}
}

func TestNilSafe(t *testing.T) {
	var m *Wallet
	m.ObserveRequest("getBalance", nil, time.Second)
	m.RecordThrottle("rate_limit")
	m.RecordDecision("connect", "approved")
	m.RecordBroadcast(nil)
	m.ObserveSync(time.Second, nil)
	m.SetBalance(1, 1)
	m.SetLocked(false)
}

func TestHandler(t *testing.T) {
	Default().ObserveRequest("getNetwork", nil, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `orbital_api_requests_total{capability="getNetwork",outcome="success"}`) {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
