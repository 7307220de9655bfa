package monitoring

import (
	"errors"
	"time"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "loan_ledger"

// Collector holds the business and portfolio metrics of the ledger.
type Collector struct {
	LoansDisbursedTotal  prometheus.Counter
	PrincipalDisbursed   prometheus.Counter
	PaymentsTotal        prometheus.Counter
	AmountCollected      prometheus.Counter
	SnapshotSaveDuration *prometheus.HistogramVec
	SnapshotBytes        prometheus.Gauge
	RemindersPublished   prometheus.Counter
	BorrowersByUrgency   *prometheus.GaugeVec
	OutstandingBalance   prometheus.Gauge
	CashOnHand           prometheus.Gauge
}

var _ ledger.Recorder = (*Collector)(nil)

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		LoansDisbursedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_disbursed_total",
			Help:      "Total number of loans disbursed.",
		}),
		PrincipalDisbursed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "principal_disbursed_total",
			Help:      "Sum of principal disbursed.",
		}),
		PaymentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_received_total",
			Help:      "Total number of payments received.",
		}),
		AmountCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_collected_total",
			Help:      "Sum of payment amounts received.",
		}),
		SnapshotSaveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_save_duration_seconds",
			Help:      "Histogram of snapshot save latencies.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"status"}),
		SnapshotBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of the last snapshot written.",
		}),
		RemindersPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_reminders_total",
			Help:      "Total number of collection reminders published.",
		}),
		BorrowersByUrgency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "borrowers",
			Help:      "Number of borrowers per urgency class.",
		}, []string{"urgency"}),
		OutstandingBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outstanding_balance",
			Help:      "Total remaining balance across all loans.",
		}),
		CashOnHand: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash_on_hand",
			Help:      "Receipts minus disbursements.",
		}),
	}
}

func (c *Collector) LoanDisbursed(principal decimal.Decimal) {
	c.LoansDisbursedTotal.Inc()
	c.PrincipalDisbursed.Add(principal.InexactFloat64())
}

func (c *Collector) PaymentReceived(amount decimal.Decimal) {
	c.PaymentsTotal.Inc()
	c.AmountCollected.Add(amount.InexactFloat64())
}

func (c *Collector) SnapshotSaved(size int, elapsed time.Duration, err error) {
	c.SnapshotSaveDuration.WithLabelValues(saveStatus(err)).Observe(elapsed.Seconds())
	if err == nil {
		c.SnapshotBytes.Set(float64(size))
	}
}

func (c *Collector) ReminderPublished() {
	c.RemindersPublished.Inc()
}

// ObservePortfolio sets the portfolio gauges from a dashboard.
func (c *Collector) ObservePortfolio(d ledger.Dashboard) {
	c.BorrowersByUrgency.WithLabelValues("overdue").Set(float64(d.OverdueCount))
	c.BorrowersByUrgency.WithLabelValues("due_soon").Set(float64(d.DueSoonCount))
	c.BorrowersByUrgency.WithLabelValues("active").Set(float64(d.ActiveCount))
	c.BorrowersByUrgency.WithLabelValues("paid").Set(float64(d.PaidCount))
	c.OutstandingBalance.Set(d.TotalOutstanding.InexactFloat64())
	c.CashOnHand.Set(d.CashOnHand.InexactFloat64())
}

func saveStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrPersistenceCapacity):
		return "full"
	default:
		return "error"
	}
}
