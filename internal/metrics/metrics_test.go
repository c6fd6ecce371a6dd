package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Klingon-tech/powledger/internal/chain"
	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/pkg/block"
)

var _ chain.Observer = (*Collector)(nil)

func TestCollector_Events(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.now = func() time.Time { return time.UnixMilli(3000) }

	c.TransactionAccepted(1)
	c.TransactionAccepted(2)
	c.JobIssued(1, 3)
	c.SolutionRejected(chain.ReasonStaleJob)
	c.SolutionAccepted(&block.Block{Index: 1, Timestamp: 1000}, 0)

	if got := testutil.ToFloat64(c.transactions); got != 2 {
		t.Errorf("transactions = %v", got)
	}
	if got := testutil.ToFloat64(c.jobs); got != 1 {
		t.Errorf("jobs = %v", got)
	}
	if got := testutil.ToFloat64(c.difficulty); got != 3 {
		t.Errorf("difficulty = %v", got)
	}
	if got := testutil.ToFloat64(c.solutions.WithLabelValues(ResultAccepted)); got != 1 {
		t.Errorf("accepted = %v", got)
	}
	if got := testutil.ToFloat64(c.solutions.WithLabelValues(chain.ReasonStaleJob)); got != 1 {
		t.Errorf("stale = %v", got)
	}
	if got := testutil.ToFloat64(c.height); got != 1 {
		t.Errorf("height = %v", got)
	}
	if got := testutil.ToFloat64(c.pending); got != 0 {
		t.Errorf("pending = %v", got)
	}
}

func TestCollector_WiredToLedger(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	l, err := chain.New(chain.Config{Difficulty: 1, Reward: 1}, chain.WithObserver(c))
	if err != nil {
		t.Fatal(err)
	}
	l.SubmitTransaction("a", "b", 1)
	if _, err := miner.NewWorker(miner.New(l), "m", 1).Run(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(c.height); got != 2 {
		t.Errorf("height = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.jobs); got != 2 {
		t.Errorf("jobs = %v, want 2", got)
	}

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{
		"powledger_transactions_submitted_total 1",
		"powledger_chain_height 2",
		`powledger_solutions_total{result="accepted"} 2`,
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}
