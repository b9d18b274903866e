package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for upstream error kinds.
const (
	UpstreamErrorRequest  = "request"
	UpstreamErrorResponse = "response"
	UpstreamErrorInternal = "internal"
)

type Metrics struct {
	ProxyRequests    *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec
	UpstreamSeconds  prometheus.Histogram
	CertProvisioning *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ProxyRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_proxy_requests_total",
			Help: "Total number of distance proxy requests by response status.",
		}, []string{"status"}),
		UpstreamErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_upstream_errors_total",
			Help: "Total number of failed calls to the distance API by kind.",
		}, []string{"kind"}),
		UpstreamSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "geodist_upstream_request_duration_seconds",
			Help:    "Duration of requests to the distance API.",
			Buckets: prometheus.DefBuckets,
		}),
		CertProvisioning: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geodist_cert_provisioning_total",
			Help: "Certificate provisioning outcomes at startup.",
		}, []string{"outcome"}),
	}
}
