// Package trace records structured events from the interpreter pipeline:
// driver and compiler phases, collector cycles and execution milestones.
//
// Enable tracing from the command line:
//
//	loxvm run --trace=- --trace-level=detail script.lox
//
// Tracers:
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes every event as it arrives
//   - RingTracer: keeps the most recent events for dumping after a failure
//   - MultiTracer: fans out to several tracers
//
// Levels gate scopes: phase emits driver and pass events, detail adds
// collector cycles, debug adds execution events.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "compile", 0)
//	defer span.End("")
package trace
