package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"mall/pkg/utils"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "TeamFull", Result(utils.ErrTeamFull))
	assert.Equal(t, "InsufficientStock", Result(utils.WrapError(errors.New("x"), utils.CodeInsufficientStock, "sku")))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestRecordTransition(t *testing.T) {
	mc := NewMetricsCollector("test")

	mc.RecordTransition("ship", nil, time.Millisecond)
	mc.RecordTransition("ship", utils.ErrActivityNotReady, time.Millisecond)
	mc.RecordTransition("ship", nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.transitionTotal.WithLabelValues("ship", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.transitionTotal.WithLabelValues("ship", "ActivityNotReady")))
}

func TestRecordSweepSkipsZero(t *testing.T) {
	mc := NewMetricsCollector("test")
	mc.RecordSweep("team", 0)
	mc.RecordSweep("team", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(mc.sweepTotal.WithLabelValues("team")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var mc *MetricsCollector
	assert.NotPanics(t, func() {
		mc.RecordTeamJoin(nil)
		mc.RecordBargainCut(nil)
		mc.RecordFlashSale(nil)
		mc.RecordInventory("product", "decrement", nil)
		mc.RecordEvent("order.paid", "publish", nil)
		mc.RecordCache("l1", "hit")
		mc.RecordHTTPRequest("GET", "/ping", "200", time.Millisecond)
		_ = mc.RegisterDB(nil, "mall")
	})
}
