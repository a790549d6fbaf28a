package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/pkg/metrics"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMetricsMgr)
	metrics.Registry().MustRegister(outboxBacklogGauge)
}

// outboxScanLimit bounds the rows read per status on each scrape.
const outboxScanLimit = 1000

var outboxBacklogGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "cobrew",
		Name:      "outbox_items",
		Help:      "Outbox items per status observed at scrape time, capped at the scan limit",
	},
	[]string{"status"},
)

type MetricsMgr struct {
	name  string
	store store.OutboxStore
}

func NewMetricsMgr(conf *RegisterConfig) Manager {
	return &MetricsMgr{
		name:  "metrics",
		store: conf.Store,
	}
}

func (mgr *MetricsMgr) GetName() string { return mgr.name }

func (mgr *MetricsMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterAdmin(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterRoot(r *gin.Engine) {
	r.GET("/metrics", mgr.GetMetrics)
}

// GetMetrics godoc
// @Summary Prometheus metrics
// @Description Workflow counters and the outbox backlog in Prometheus text format
// @Tags Metrics
// @Produce plain
// @Success 200 {string} string "Prometheus exposition"
// @Router /metrics [get]
func (mgr *MetricsMgr) GetMetrics(c *gin.Context) {
	mgr.observeOutbox(c)
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

func (mgr *MetricsMgr) observeOutbox(c *gin.Context) {
	for _, status := range []model.OutboxStatus{model.OutboxStatusPending, model.OutboxStatusDead} {
		items, err := mgr.store.ListOutbox(c, status, outboxScanLimit)
		if err != nil {
			klog.Warningf("scan %s outbox items: %v", status, err)
			continue
		}
		outboxBacklogGauge.WithLabelValues(string(status)).Set(float64(len(items)))
	}
}
