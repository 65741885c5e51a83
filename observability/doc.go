// Package observability records queue lifecycle metrics with OpenTelemetry.
//
// A [Recorder] is created once by the engine from a metric.Meter and passed
// to every component that changes job state. Instruments:
//
//   - drainq.job.enqueued            jobs accepted by Enqueue
//   - drainq.job.rejected{reason}    enqueues refused (validation or duplicate)
//   - drainq.job.completed           handler succeeded
//   - drainq.job.retried             job returned to the queue after a failure
//   - drainq.job.dead_lettered       retries exhausted
//   - drainq.job.recovered           stuck jobs returned to the queue
//   - drainq.drain.runs{outcome}     drain bursts by outcome
//   - drainq.drain.rescheduled       backlog reschedules
//   - drainq.queue.size              queued + processing jobs (observable gauge)
package observability
