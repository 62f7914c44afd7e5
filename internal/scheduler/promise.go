package scheduler

import (
	"github.com/ipfs/go-cid"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

// resolveArgs substitutes every Await argument in in with the inner
// IPLD value its selector admits from the receipt resolved[ptr],
// per §4.5's promise selector semantics. Literal arguments pass
// through unchanged.
func resolveArgs(args []invocation.Argument, resolved map[cid.Cid]invocation.Receipt) ([]ipld.Value, error) {
	out := make([]ipld.Value, len(args))
	for i, a := range args {
		if !a.IsAwait {
			out[i] = a.Literal
			continue
		}

		receipt, ok := resolved[a.Pointer.CID]
		if !ok {
			return nil, &UnresolvedAwaitError{Pointer: a.Pointer.CID}
		}

		v, err := selectBranch(a.Selector, a.Pointer.CID, receipt.Out)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// selectBranch applies one of the three Await selectors to a resolved
// receipt's tagged outcome. await/ok and await/error each accept only
// their named branch and the non-Error "just" branch is treated as
// the non-error side for await/ok; await/* accepts any branch.
func selectBranch(selector invocation.AwaitSelector, ptr cid.Cid, out invocation.Outcome) (ipld.Value, error) {
	switch selector {
	case invocation.AwaitOK:
		if out.Tag == invocation.OutcomeError {
			return ipld.Value{}, &PromiseBranchMismatchError{Selector: selector, Pointer: ptr, Got: out.Tag}
		}
	case invocation.AwaitError:
		if out.Tag != invocation.OutcomeError {
			return ipld.Value{}, &PromiseBranchMismatchError{Selector: selector, Pointer: ptr, Got: out.Tag}
		}
	case invocation.AwaitAny:
		// accepts either branch
	}
	return out.Value, nil
}
