// Package targeting is the pure decision core of the platform: condition
// tree evaluation, deterministic hash bucketing, percentage rollout gating,
// weighted variant selection and the significance approximation used in
// experiment reports.
//
// Every function here is stateless and side-effect free. The same inputs
// produce the same outputs across processes and over time, which is what
// makes bucketing decisions reproducible without storing them. Evaluation
// is total: malformed trees, unknown operators and missing fields degrade
// to "does not match", never to an error, because these functions gate
// live traffic.
package targeting
