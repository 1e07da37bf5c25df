// Package audit implements C8: best-effort persistence of payments and
// request logs. Writes are queued onto a buffered channel and drained by a
// background worker, the same shape as the teacher's
// ProvisioningService.startProvisioningWorker — a write failure here must
// never change the response the pipeline already produced.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/x402-gateway/internal/model"
)

const queueSize = 256

// Store is the persistence boundary the worker writes through. It is
// satisfied by internal/store's Postgres-backed implementation; tests
// provide an in-memory fake.
type Store interface {
	InsertPayment(ctx context.Context, payment *model.Payment) error
	InsertRequestLog(ctx context.Context, entry *model.RequestLog) error
	UpdatePayment(ctx context.Context, id uuid.UUID, update PaymentUpdate) error
}

// PaymentUpdate is the set of fields C7's Settle step may change on a
// payment row it created earlier in the same request (§4.8).
type PaymentUpdate struct {
	Status         model.PaymentStatus
	TxHash         string
	SettlementJSON []byte
	SettledAt      *time.Time
	ErrorMessage   string
}

type jobKind int

const (
	jobInsertPayment jobKind = iota
	jobInsertRequestLog
	jobUpdatePayment
)

type job struct {
	kind        jobKind
	payment     *model.Payment
	requestLog  *model.RequestLog
	paymentID   uuid.UUID
	update      PaymentUpdate
}

// Writer is the queue-backed audit sink. Call New once at startup and share
// the instance across requests.
type Writer struct {
	store Store
	jobs  chan job
}

// New builds a Writer backed by store and starts its worker goroutine.
func New(store Store) *Writer {
	w := &Writer{
		store: store,
		jobs:  make(chan job, queueSize),
	}
	go w.run()
	return w
}

func (w *Writer) run() {
	for j := range w.jobs {
		ctx := context.Background()
		var err error
		switch j.kind {
		case jobInsertPayment:
			err = w.store.InsertPayment(ctx, j.payment)
		case jobInsertRequestLog:
			err = w.store.InsertRequestLog(ctx, j.requestLog)
		case jobUpdatePayment:
			err = w.store.UpdatePayment(ctx, j.paymentID, j.update)
		}
		if err != nil {
			log.Error().Err(err).Int("job_kind", int(j.kind)).Msg("audit: write failed")
		}
	}
}

// InsertPayment queues payment for persistence. payment.ID must already be
// set by the caller (the pipeline generates it up front so later
// UpdatePayment calls can reference it without waiting on this write).
func (w *Writer) InsertPayment(payment *model.Payment) {
	w.enqueue(job{kind: jobInsertPayment, payment: payment})
}

// InsertRequestLog queues entry for persistence.
func (w *Writer) InsertRequestLog(entry *model.RequestLog) {
	w.enqueue(job{kind: jobInsertRequestLog, requestLog: entry})
}

// UpdatePayment queues a status transition for the payment with id, created
// earlier in the same request by this pipeline instance (§4.8: "only ever
// applied to a payment the pipeline itself just created").
func (w *Writer) UpdatePayment(id uuid.UUID, update PaymentUpdate) {
	w.enqueue(job{kind: jobUpdatePayment, paymentID: id, update: update})
}

func (w *Writer) enqueue(j job) {
	select {
	case w.jobs <- j:
	default:
		log.Warn().Int("job_kind", int(j.kind)).Msg("audit: queue full, dropping write")
	}
}
