// Package job defines the job entity, status machine, handler registry,
// typed definitions, and store interface.
//
// # Job Entity
//
// A [Job] is one inbound event waiting to be processed for a tenant. Its
// status moves along a small DAG:
//
//	queued → processing → completed
//	queued → processing → queued      (retry, or recovered when stuck)
//	queued → processing → failed      (dead letter)
//
// Fields of note:
//   - TenantID: the serialization unit; one drain per tenant at a time
//   - Intent: selects the handler in the [Registry]
//   - ExternalID: idempotency key scoped to (TenantID, Topic)
//   - OrderID: secondary key, deduplicated only against active jobs
//   - NextRunAt: earliest claim time; nil means immediately
//
// # Defining a Handler
//
// Use [Definition] with a typed handler. The payload is decoded from JSON
// before the handler runs:
//
//	var OrderPaid = job.NewDefinition("orders.paid",
//	    func(ctx context.Context, in OrderEvent) error {
//	        return ledger.Record(ctx, in.OrderID, in.Total)
//	    },
//	)
//
//	job.RegisterDefinition(registry, OrderPaid)
package job
