package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(embeddingJobsTotal, postsEmbeddedTotal, queueDepth, workerThrottledTotal)
}

var (
	embeddingJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_jobs_total",
			Help: "Embedding jobs finished, labeled by outcome.",
		},
		[]string{"status"}, // 'completed', 'retried', 'failed'
	)

	postsEmbeddedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_embedded_total",
			Help: "Per-post embedding results.",
		},
		[]string{"status"}, // 'succeeded', 'failed'
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "embedding_queue_jobs",
			Help: "Jobs in the embedding queue by state.",
		},
		[]string{"state"},
	)

	workerThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "embedding_worker_throttled_total",
			Help: "Job starts deferred by the worker rate window.",
		},
	)
)

func IncEmbeddingJob(status string) {
	embeddingJobsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPostsEmbedded(succeeded, failed int) {
	postsEmbeddedTotal.WithLabelValues("succeeded").Add(float64(succeeded))
	postsEmbeddedTotal.WithLabelValues("failed").Add(float64(failed))
}

func SetQueueDepth(waiting, active, completed, failed, delayed int) {
	queueDepth.WithLabelValues("waiting").Set(float64(waiting))
	queueDepth.WithLabelValues("active").Set(float64(active))
	queueDepth.WithLabelValues("completed").Set(float64(completed))
	queueDepth.WithLabelValues("failed").Set(float64(failed))
	queueDepth.WithLabelValues("delayed").Set(float64(delayed))
}

func IncWorkerThrottled() { workerThrottledTotal.Inc() }
