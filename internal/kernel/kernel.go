package kernel

import (
	"errors"
	"math/big"
	"math/bits"

	"github.com/duskline/withdraw/internal/circuit"
	"github.com/duskline/withdraw/internal/nullifier"
	"github.com/duskline/withdraw/pkg/primitives"
)

// Instruction tags, SPEC_FULL.md §4.4/§6.
const (
	TagDeposit       byte = 0x01
	TagAdminPushRoot byte = 0x02
	TagWithdraw      byte = 0x04
)

const proofSize = 256
const publicInputsWireSize = 64

// Ledger is the kernel's view of pooled funds: a single pool account
// paying out to recipients and a treasury account collecting fees. Real
// deployments back this with native lamport transfers; this
// in-process model exists so Withdraw's step 7 ("transfer lamports")
// is an actually-checked arithmetic operation rather than a comment.
type Ledger interface {
	Balance() uint64
	Transfer(to primitives.Address, amount uint64) error
	Credit(amount uint64)
}

// Kernel is the settlement kernel (C4): the single point of enforcement
// for proof validity, non-replay, and fund movement. Modeled as an
// in-process program object rather than an on-chain smart contract
// runtime, since no chain SDK exists anywhere in the reference corpus;
// Dispatch's tagged-variant shape and strict ordering of checks before
// effects is what carries over from a real on-chain program.
type Kernel struct {
	AdminAuthority primitives.Address
	Pool           Ledger
	Treasury       Ledger

	Roots       *RootRing
	Nullifiers  *nullifier.Set
	Circuit     *circuit.Manager
	Claims      *ClaimRegistry
	PoWEnabled  bool

	DepositLog func(leafCommit primitives.Hash)
	EventLog   func(nf, root, outputsHash primitives.Hash)
}

// Config bundles Initialise's inputs: the admin authority, the initial
// pool balance (the treasury always starts empty), the compiled circuit
// manager, the nullifier shard capacity, and the PoW gate.
type Config struct {
	AdminAuthority     primitives.Address
	InitialPoolBalance uint64
	Circuit            *circuit.Manager
	NullifierCapacity  int
	PoWEnabled         bool
}

// Initialise creates the pool, treasury, roots ring (all entries zero),
// and admin authority, per SPEC_FULL.md §4.4.
func Initialise(cfg Config) *Kernel {
	return &Kernel{
		AdminAuthority: cfg.AdminAuthority,
		Pool:           NewInMemoryLedger(cfg.InitialPoolBalance),
		Treasury:       NewInMemoryLedger(0),
		Roots:          NewRootRing(),
		Nullifiers:     nullifier.NewSet(cfg.NullifierCapacity),
		Circuit:        cfg.Circuit,
		Claims:         NewClaimRegistry(),
		PoWEnabled:     cfg.PoWEnabled,
	}
}

// WithdrawOutput is one parsed recipient from the Withdraw instruction.
type WithdrawOutput struct {
	Address primitives.Address
	Amount  uint64
}

// WithdrawArgs is the parsed form of the Withdraw instruction's wire
// layout (SPEC_FULL.md §6), before any checks have run.
type WithdrawArgs struct {
	Proof        []byte // 256B, Groth16-style
	PublicInputs []byte // 64B, verifier-packed form; carried but not read: checkWithdraw rebuilds the public witness from Root/Nullifier/OutputsHash/Amount
	Root         primitives.Hash
	Nullifier    primitives.Hash
	Amount       uint64
	FeeBps       uint16
	OutputsHash  primitives.Hash
	Outputs      []WithdrawOutput

	// PoW gate (only consulted when Kernel.PoWEnabled).
	ClaimPDA       primitives.Hash
	MinerAuthority primitives.Address
	NowSlot        uint64
}

// Dispatch realizes the kernel's four-instruction tagged dispatch.
// Initialise has no wire form (it is the constructor, Initialise);
// Dispatch handles Deposit, AdminPushRoot, and Withdraw.
func (k *Kernel) Dispatch(tag byte, data []byte, caller primitives.Address) error {
	switch tag {
	case TagDeposit:
		return k.deposit(data)
	case TagAdminPushRoot:
		return k.adminPushRoot(data, caller)
	case TagWithdraw:
		args, err := ParseWithdraw(data)
		if err != nil {
			return err
		}
		return k.Withdraw(args)
	default:
		return ErrInvalidTag
	}
}

func (k *Kernel) deposit(data []byte) error {
	if len(data) < 32+2 {
		return ErrBadIxLength
	}
	var leafCommit primitives.Hash
	copy(leafCommit[:], data[:32])
	encLen := primitives.Uint16LE(data[32:34])
	if len(data) != 34+int(encLen) {
		return ErrBadIxLength
	}
	if k.DepositLog != nil {
		k.DepositLog(leafCommit)
	}
	return nil
}

func (k *Kernel) adminPushRoot(data []byte, caller primitives.Address) error {
	if caller != k.AdminAuthority {
		return ErrBadAccounts
	}
	if len(data) != 32 {
		return ErrBadIxLength
	}
	var root primitives.Hash
	copy(root[:], data)
	k.Roots.Push(root)
	return nil
}

// ParseWithdraw decodes the Withdraw instruction's wire layout,
// SPEC_FULL.md §6. BadIxLength covers every length mismatch, including
// num_outputs outside [1, 5].
func ParseWithdraw(data []byte) (WithdrawArgs, error) {
	var a WithdrawArgs
	off := 0
	need := func(n int) bool { return len(data)-off >= n }

	if !need(proofSize) {
		return a, ErrBadIxLength
	}
	a.Proof = append([]byte(nil), data[off:off+proofSize]...)
	off += proofSize

	if !need(publicInputsWireSize) {
		return a, ErrBadIxLength
	}
	a.PublicInputs = append([]byte(nil), data[off:off+publicInputsWireSize]...)
	off += publicInputsWireSize

	if !need(32) {
		return a, ErrBadIxLength
	}
	copy(a.Root[:], data[off:off+32])
	off += 32

	if !need(32) {
		return a, ErrBadIxLength
	}
	copy(a.Nullifier[:], data[off:off+32])
	off += 32

	if !need(8) {
		return a, ErrBadIxLength
	}
	a.Amount = primitives.Uint64LE(data[off : off+8])
	off += 8

	if !need(2) {
		return a, ErrBadIxLength
	}
	a.FeeBps = primitives.Uint16LE(data[off : off+2])
	off += 2

	if !need(32) {
		return a, ErrBadIxLength
	}
	copy(a.OutputsHash[:], data[off:off+32])
	off += 32

	if !need(1) {
		return a, ErrBadIxLength
	}
	numOutputs := int(data[off])
	off++
	if numOutputs < 1 || numOutputs > 5 {
		return a, ErrBadIxLength
	}

	const outputWidth = 32 + 8
	if !need(numOutputs * outputWidth) {
		return a, ErrBadIxLength
	}
	a.Outputs = make([]WithdrawOutput, numOutputs)
	for i := 0; i < numOutputs; i++ {
		var addr primitives.Address
		copy(addr[:], data[off:off+32])
		off += 32
		amount := primitives.Uint64LE(data[off : off+8])
		off += 8
		a.Outputs[i] = WithdrawOutput{Address: addr, Amount: amount}
	}

	if off != len(data) {
		return a, ErrBadIxLength
	}
	return a, nil
}

// sumOutputsAndFee adds the declared output amounts to the fee law's
// result using checked u64 arithmetic, surfacing ErrMathOverflow at the
// exact boundary named in SPEC_FULL.md §8 instead of wrapping silently.
func sumOutputsAndFee(outputs []WithdrawOutput, amount uint64) (total, fee uint64, err error) {
	var outputSum uint64
	for _, o := range outputs {
		newSum, carry := bits.Add64(outputSum, o.Amount, 0)
		if carry != 0 {
			return 0, 0, ErrMathOverflow
		}
		outputSum = newSum
	}
	fee, ok := circuit.Fee(amount)
	if !ok {
		return 0, 0, ErrMathOverflow
	}
	total, carry := bits.Add64(outputSum, fee, 0)
	if carry != 0 {
		return 0, 0, ErrMathOverflow
	}
	return total, fee, nil
}

// checkWithdraw runs steps 2-6 of SPEC_FULL.md §4.4: every read-only
// check that must pass before any fund movement or nullifier write.
// It has no side effects, so a simulator and the real Withdraw path
// can share it verbatim.
func (k *Kernel) checkWithdraw(a WithdrawArgs) (fee uint64, err error) {
	// Step 2: recompute outputs_hash from the parsed outputs (cheap
	// pre-check). This must agree with constraint 6's domain, which is
	// the MiMC fold the circuit proves over (see internal/circuit's
	// offcircuit.go) rather than the BLAKE3 domain C1 uses for index
	// and kernel bookkeeping — the single deliberate exception to "hash
	// everything with BLAKE3", forced by the proof system underneath.
	addresses := make([]*big.Int, len(a.Outputs))
	amounts := make([]*big.Int, len(a.Outputs))
	for i, o := range a.Outputs {
		addresses[i] = circuit.FieldFromHash(primitives.Hash(o.Address))
		amounts[i] = new(big.Int).SetUint64(o.Amount)
	}
	recomputed := circuit.OutputsHashFold(addresses, amounts)
	if recomputed.Cmp(circuit.FieldFromHash(a.OutputsHash)) != 0 {
		return 0, ErrOutputsMismatch
	}

	// Step 3: verify the zk proof against the pinned verifying key and
	// the public input formed from root/nf/outputs_hash/amount.
	pub := circuit.PublicInputs{
		Root:        circuit.FieldFromHash(a.Root),
		Nullifier:   circuit.FieldFromHash(a.Nullifier),
		OutputsHash: circuit.FieldFromHash(a.OutputsHash),
		Amount:      new(big.Int).SetUint64(a.Amount),
	}
	publicWitness, err := circuit.PublicWitnessBytes(pub)
	if err != nil {
		return 0, ErrProofInvalid
	}
	proof, err := circuit.DecodeProof(a.Proof)
	if err != nil {
		return 0, ErrProofInvalid
	}
	if err := k.Circuit.Verify(proof, publicWitness); err != nil {
		return 0, ErrProofInvalid
	}

	// Step 4: ring lookup.
	if !k.Roots.Contains(a.Root) {
		return 0, ErrInvalidRoot
	}

	// Step 5: fee law, identical to the circuit's.
	total, fee, err := sumOutputsAndFee(a.Outputs, a.Amount)
	if err != nil {
		return 0, err
	}
	if total != a.Amount {
		return 0, ErrConservation
	}

	// Step 6: nullifier shard lookup.
	if k.Nullifiers.IsSpent(a.Nullifier) {
		return 0, ErrDoubleSpend
	}

	return fee, nil
}

// SimulateWithdraw runs every check Withdraw would run, without
// touching pool balances or the nullifier set — the relay's pipeline
// step 4 (simulate against the RPC before submitting) maps onto this.
func (k *Kernel) SimulateWithdraw(a WithdrawArgs) error {
	_, err := k.checkWithdraw(a)
	return err
}

// Withdraw runs the eight-step process of SPEC_FULL.md §4.4 in order.
// Steps 2-6 are read-only checks; on any failure before step 7 nothing
// in k changes. Steps 7-8 are the side effects, performed only once
// every prior check has passed.
func (k *Kernel) Withdraw(a WithdrawArgs) error {
	fee, err := k.checkWithdraw(a)
	if err != nil {
		return err
	}

	// PoW gate: cross-invoke consume_claim before any transfer commits.
	if k.PoWEnabled {
		batchHash := primitives.Sum(a.Root[:], a.Nullifier[:])
		if err := k.Claims.ConsumeClaim(a.ClaimPDA, a.MinerAuthority, batchHash, a.NowSlot); err != nil {
			return ErrClaimNotEligible
		}
	}

	var outputSum uint64
	for _, o := range a.Outputs {
		outputSum += o.Amount
	}
	total := outputSum + fee

	// Step 7: transfer lamports, all-or-nothing.
	if k.Pool.Balance() < total {
		return ErrInsufficientPool
	}
	for _, o := range a.Outputs {
		if err := k.Pool.Transfer(o.Address, o.Amount); err != nil {
			return ErrInsufficientPool
		}
	}
	k.Treasury.Credit(fee)

	// Step 8: append nf to the shard, emit the withdraw event.
	if err := k.Nullifiers.MarkSpent(a.Nullifier); err != nil {
		if errors.Is(err, nullifier.ErrNullifierCapacity) {
			return ErrNullifierCapacity
		}
		return ErrDoubleSpend
	}
	if k.EventLog != nil {
		k.EventLog(a.Nullifier, a.Root, a.OutputsHash)
	}
	return nil
}
