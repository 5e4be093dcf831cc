package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// Metrics はゲートウェイの呼び出しと Webhook 配送の指標です。
// generator.Recorder と webhook.DeliveryRecorder を実装します。
type Metrics struct {
	// CallsTotal はモダリティと結果ごとの呼び出し回数です。
	// ラベル: modality, status
	CallsTotal *prometheus.CounterVec

	// CallDuration は呼び出しの所要時間（秒）です。
	// ラベル: modality
	CallDuration *prometheus.HistogramVec

	// VideoPollsTotal は動画オペレーションのポーリング回数です。
	VideoPollsTotal prometheus.Counter

	// WebhookDeliveriesTotal は Webhook の配送結果ごとの回数です。
	// ラベル: result (delivered, failed, skipped)
	WebhookDeliveriesTotal *prometheus.CounterVec
}

// New は reg に指標を登録して Metrics を生成します。
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Total number of generation gateway calls",
			},
			[]string{"modality", "status"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Duration of generation gateway calls in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"modality"},
		),
		VideoPollsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_video_polls_total",
				Help:      "Total number of video operation polls",
			},
		),
		WebhookDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_webhook_deliveries_total",
				Help:      "Total number of webhook delivery attempts by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveCall は呼び出し 1 回分を記録します。
func (m *Metrics) ObserveCall(modality domain.Modality, status domain.LogStatus, elapsed time.Duration) {
	m.CallsTotal.WithLabelValues(string(modality), string(status)).Inc()
	m.CallDuration.WithLabelValues(string(modality)).Observe(elapsed.Seconds())
}

// ObserveVideoPoll はポーリング 1 回分を記録します。
func (m *Metrics) ObserveVideoPoll() {
	m.VideoPollsTotal.Inc()
}

// ObserveWebhook は Webhook の配送結果を記録します。
func (m *Metrics) ObserveWebhook(result string) {
	m.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
}
