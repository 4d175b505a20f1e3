// Package smartcharging computes composite charging schedules from the
// charging profiles installed on a charge point.
//
// The pipeline runs in fixed stages:
//
//   - FilterValid drops profiles outside their validity window.
//   - ExtractPeriods turns profiles into timestamped limit changes.
//   - Stack resolves stack-level precedence within one purpose.
//   - MergeTx lets TxProfile periods override TxDefaultProfile periods.
//   - AggregateConnectors sums per-connector deltas for the station view.
//   - Combine takes the pointwise minimum with the ChargePointMaxProfile.
//
// Engine orchestrates the stages for a single query and CurrentLimit reads
// the limit in force at a given second of the day. All functions are pure;
// the current time is passed in as a clock.Instant.
package smartcharging
