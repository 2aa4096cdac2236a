// verify.go -- Concurrent partner verification with isolated per-account failure.
package connect

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// verifyAll runs verifier for every id concurrently, at most limit at a time
// (limit <= 0 means unbounded), and joins all outcomes in input order.
// A failing call becomes an unsuccessful result for its id only; it never
// cancels or fails the others.
func verifyAll(ctx context.Context, verifier PartnerVerifier, ids []string, limit int) []Verification {
	out := make([]Verification, len(ids))

	// Plain Group, not WithContext: one failure must not cancel its siblings.
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			res, err := verifier.VerifyPartner(ctx, id)
			if err != nil {
				slog.Warn("partner verification failed", "business_account_id", id, "error", err)
				res = VerificationResult{Success: false, Message: err.Error()}
			}
			out[i] = Verification{BusinessAccountID: id, Result: res}
			return nil
		})
	}
	g.Wait()
	return out
}

// anyFailed reports whether any verification did not succeed.
func anyFailed(vs []Verification) bool {
	for _, v := range vs {
		if !v.Result.Success {
			return true
		}
	}
	return false
}
