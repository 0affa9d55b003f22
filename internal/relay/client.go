package relay

import (
	"github.com/duskline/withdraw/internal/kernel"
	"github.com/duskline/withdraw/pkg/primitives"
)

// KernelClient is the relay's view of the settlement kernel: simulate a
// withdraw, submit it for real, and read the currently accepted root
// ring. A real deployment implements this over an RPC client against
// an on-chain program; LocalKernelClient below implements it directly
// against an in-process Kernel, which is what this repository's
// reference corpus gives it to work with.
type KernelClient interface {
	Simulate(args kernel.WithdrawArgs) error
	Submit(args kernel.WithdrawArgs) (signature string, err error)
	Roots() []primitives.Hash
}

// LocalKernelClient adapts a kernel.Kernel to the KernelClient
// interface. Submit's "signature" is the hex-encoded withdraw event
// hash (nullifier‖root), standing in for a real transaction signature.
type LocalKernelClient struct {
	K *kernel.Kernel
}

func (c *LocalKernelClient) Simulate(args kernel.WithdrawArgs) error {
	return c.K.SimulateWithdraw(args)
}

func (c *LocalKernelClient) Submit(args kernel.WithdrawArgs) (string, error) {
	if err := c.K.Withdraw(args); err != nil {
		return "", err
	}
	sig := primitives.Sum(args.Nullifier[:], args.Root[:])
	return sig.Hex(), nil
}

func (c *LocalKernelClient) Roots() []primitives.Hash {
	return c.K.Roots.Snapshot()
}
