package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("loa", reg)

	c.Document("succeeded")
	c.Document("succeeded")
	c.Document("failed")
	c.Attempt("empty_parse")
	c.Inference("check", nil, 10*time.Millisecond)
	c.Inference("extract", errors.New("boom"), time.Second)
	c.RowsPersisted(3)
	c.RowsPersisted(0)
	c.RowsRejected("duplicate", 2)
	c.Restart(nil)
	c.InFlight(1)
	c.InFlight(1)
	c.InFlight(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.documentsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attemptsTotal.WithLabelValues("empty_parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inferenceTotal.WithLabelValues("check", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inferenceTotal.WithLabelValues("extract", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.rowsPersisted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rowsRejected.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inferenceRestarts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documentsInFlight))
	assert.Equal(t, 2, testutil.CollectAndCount(c.inferenceDuration))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Document("x")
		c.Attempt("x")
		c.Inference("check", nil, 0)
		c.RowsPersisted(1)
		c.RowsRejected("x", 1)
		c.Restart(nil)
		c.InFlight(1)
	})
}
