// Package usage tracks per-user daily creation counters for stories and
// scenes and gates generation requests against per-tier limits.
//
// Counters are bucketed by the user's local calendar day (pkg/localday),
// never the server's, so quota resets at the user's midnight.
//
// The correctness contract: check, then generate, then increment. Never
// increment before the content was produced and persisted, or a failed
// generation would still burn quota. The check and the increment are
// separated only by the generation call itself, and the increment is one
// atomic store operation, so concurrent successful generations are never
// under-counted.
package usage
