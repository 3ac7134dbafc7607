package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/PointLedger/internal/api"
	"github.com/fastprodman/PointLedger/internal/infra/userlock"
	"github.com/fastprodman/PointLedger/internal/metrics"
	"github.com/fastprodman/PointLedger/internal/repos/balances"
	membalances "github.com/fastprodman/PointLedger/internal/repos/balances/memory"
	memhistories "github.com/fastprodman/PointLedger/internal/repos/histories/memory"
	"github.com/fastprodman/PointLedger/internal/services/points"
	"github.com/fastprodman/PointLedger/pkg/shutdownqueue"
)

const timeout = 5 * time.Second

var httpClient = &http.Client{Timeout: timeout}

type stack struct {
	baseURL  string
	balances balances.Balances
	reg      *prometheus.Registry
}

// startStack wires the whole service the way cmd/api does and serves it from
// an in-process server that is torn down through a shutdown queue.
func startStack(t *testing.T, policy userlock.Policy) stack {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	locker, err := userlock.New(policy,
		userlock.WithWaitTimeout(timeout),
		userlock.WithWaitObserver(m.ObserveLockWait),
	)
	require.NoError(t, err)

	bal := membalances.New(membalances.WithLatency(time.Millisecond))
	ledger := points.New(
		bal,
		memhistories.New(memhistories.WithLatency(time.Millisecond)),
		locker,
		points.WithRecorder(m),
		points.WithLogger(log),
	)

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Ledger:   ledger,
		Metrics:  m,
		Gatherer: reg,
		Logger:   log,
	}))

	q := shutdownqueue.New()
	q.Add(func(context.Context) error {
		srv.Close()

		return nil
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		require.NoError(t, q.Shutdown(ctx))
	})

	return stack{baseURL: srv.URL, balances: bal, reg: reg}
}

func TestE2E_ExampleScenario(t *testing.T) {
	t.Parallel()

	for _, policy := range []userlock.Policy{userlock.PolicyGlobal, userlock.PolicyPerUser} {
		t.Run(policy.String(), func(t *testing.T) {
			t.Parallel()

			s := startStack(t, policy)

			_, err := s.balances.Set(t.Context(), 1, 20)
			require.NoError(t, err)

			assert.Equal(t, int64(30), s.patchOK(t, 1, "charge", 10))
			assert.Equal(t, int64(40), s.patchOK(t, 1, "charge", 10))

			code, body := s.patch(t, 1, "use", 50)
			assert.Equal(t, http.StatusConflict, code, body)
			assert.Equal(t, int64(40), s.balance(t, 1))

			assert.Equal(t, int64(35), s.patchOK(t, 1, "use", 5))

			recs := s.history(t, 1)
			require.Len(t, recs, 3)

			got := make([]string, 0, len(recs))
			for _, r := range recs {
				got = append(got, fmt.Sprintf("%s %d", r.Type, r.Amount))
			}

			assert.Equal(t, []string{"CHARGE 10", "CHARGE 10", "USE 5"}, got)
		})
	}
}

func TestE2E_ConcurrentMutations(t *testing.T) {
	t.Parallel()

	const (
		users    = 4
		perUser  = 25
		amount   = 10
		useEvery = 5
	)

	s := startStack(t, userlock.PolicyPerUser)

	g, ctx := errgroup.WithContext(t.Context())

	for u := uint64(1); u <= users; u++ {
		for i := range perUser {
			g.Go(func() error {
				op := "charge"
				if i%useEvery == useEvery-1 {
					op = "use"
				}

				code, body, err := s.do(ctx, http.MethodPatch, fmt.Sprintf("/point/%d/%s", u, op), amount)
				if err != nil {
					return err
				}

				if code != http.StatusOK && code != http.StatusConflict {
					return fmt.Errorf("user %d %s: status %d (%s)", u, op, code, body)
				}

				return nil
			})
		}
	}

	require.NoError(t, g.Wait())

	for u := uint64(1); u <= users; u++ {
		recs := s.history(t, u)

		var want int64
		for _, r := range recs {
			if r.Type == "CHARGE" {
				want += r.Amount
			} else {
				want -= r.Amount
			}

			assert.GreaterOrEqual(t, want, int64(0), "history of user %d went negative", u)
		}

		assert.Equal(t, want, s.balance(t, u), "user %d", u)

		code, body, err := s.do(t.Context(), http.MethodGet, fmt.Sprintf("/point/%d/audit", u), 0)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code, body)
	}

	assert.Equal(t, float64(users*perUser*(useEvery-1)/useEvery), mutationCount(t, s.reg, "CHARGE", "ok"))
}

/* -------------------- helpers -------------------- */

type record struct {
	ID     uint64 `json:"id"`
	Amount int64  `json:"amount"`
	Type   string `json:"type"`
}

func (s stack) do(ctx context.Context, method, path string, amount int64) (int, string, error) {
	var body io.Reader
	if method == http.MethodPatch {
		data, err := json.Marshal(map[string]int64{"amount": amount})
		if err != nil {
			return 0, "", fmt.Errorf("marshal: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return 0, "", fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read body: %w", err)
	}

	return resp.StatusCode, string(b), nil
}

func (s stack) patch(t *testing.T, userID uint64, op string, amount int64) (int, string) {
	t.Helper()

	code, body, err := s.do(t.Context(), http.MethodPatch, fmt.Sprintf("/point/%d/%s", userID, op), amount)
	require.NoError(t, err)

	return code, body
}

func (s stack) patchOK(t *testing.T, userID uint64, op string, amount int64) int64 {
	t.Helper()

	code, body := s.patch(t, userID, op, amount)
	require.Equal(t, http.StatusOK, code, body)

	var payload struct {
		Point int64 `json:"point"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	return payload.Point
}

func (s stack) balance(t *testing.T, userID uint64) int64 {
	t.Helper()

	code, body, err := s.do(t.Context(), http.MethodGet, fmt.Sprintf("/point/%d", userID), 0)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code, body)

	var payload struct {
		UserID uint64 `json:"userId"`
		Point  int64  `json:"point"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Equal(t, userID, payload.UserID)

	return payload.Point
}

func (s stack) history(t *testing.T, userID uint64) []record {
	t.Helper()

	code, body, err := s.do(t.Context(), http.MethodGet, fmt.Sprintf("/point/%d/histories", userID), 0)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code, body)

	var recs []record
	require.NoError(t, json.Unmarshal([]byte(body), &recs))

	return recs
}

// mutationCount reads the mutation counter for kind and outcome from reg.
func mutationCount(t *testing.T, reg *prometheus.Registry, kind, outcome string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != "pointledger_mutations_total" {
			continue
		}

		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}

			if labels["kind"] == kind && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}

	t.Fatalf("no %s/%s mutation counter", kind, outcome)

	return 0
}
