// Package event provides a synchronous pub-sub bus for run lifecycle events.
//
// The orchestrator publishes events as chains start, finish, or fail;
// subscribers (loggers, metrics, UIs) react without the orchestrator knowing
// about them.
//
// Event types follow the pattern "category.action":
//   - run.started, run.completed, run.aborted
//   - chain.started, chain.completed, chain.failed
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine, so they must be quick. A panicking handler is
// recovered and does not prevent delivery to other handlers.
//
// # Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeChainFailed, func(e event.Event) {
//	    failed := e.(event.ChainFailedEvent)
//	    log.Printf("chain %d failed: %v", failed.Chain, failed.Err)
//	})
package event
