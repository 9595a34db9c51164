// Package dispatch implements the quota-governed multi-provider email
// dispatcher that sends account verification mail.
//
// A dispatch walks an ordered list of provider adapters (primary first) and,
// optionally, an ordered list of alternate sender identities per provider.
// Before every provider attempt two independent ledger gates are consulted: a
// per-day send cap and a consecutive-failure circuit. The first accepted send
// wins; outcomes are recorded back to the durable ledger so caps and circuits
// hold across restarts and across concurrent processes.
//
// Gate semantics follow a fixed policy: a daily-limit denial is itself
// recorded as a failed attempt, while a circuit-open skip records nothing
// (counting it would hold the circuit open forever). Every failure mode is
// recovered at the governor boundary and surfaced as a structured Result;
// dispatch never panics and never returns a raw provider fault to callers.
package dispatch
