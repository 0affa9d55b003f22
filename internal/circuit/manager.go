package circuit

import (
	"bytes"
	"errors"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

var (
	ErrCircuitNotCompiled      = errors.New("circuit: withdraw circuit not compiled")
	ErrProofGenerationFailed   = errors.New("circuit: proof generation failed")
	ErrProofVerificationFailed = errors.New("circuit: proof verification failed")
	ErrInvalidOutputCount      = errors.New("circuit: output count out of range [1, MaxOutputs]")
	ErrFeeOverflow             = errors.New("circuit: fee computation overflowed")
	ErrConservationMismatch    = errors.New("circuit: sum(outputs) + fee != amount")
)

// Manager holds the one compiled withdraw circuit plus its proving and
// verifying keys. A deployment runs Setup once (or loads keys persisted
// from a prior Setup) and shares the resulting Manager across every
// relay worker and the kernel's verifier.
type Manager struct {
	mu sync.RWMutex

	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	r1cs frontend.CompiledConstraintSystem
}

// NewManager returns an uncompiled Manager; call Setup before Prove.
func NewManager() *Manager {
	return &Manager{}
}

// Setup compiles WithdrawCircuit and runs the groth16 trusted setup,
// producing a fresh proving/verifying key pair. In production this key
// pair is generated once (via a ceremony) and loaded with LoadKeys; the
// relay and test suite call Setup directly for a self-contained
// development circuit.
func (m *Manager) Setup() error {
	circuit := &WithdrawCircuit{}

	r1cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return err
	}

	pk, vk, err := groth16.Setup(r1cs)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.r1cs = r1cs
	m.pk = pk
	m.vk = vk
	return nil
}

// LoadKeys installs a proving/verifying key pair produced by a prior
// Setup (or an offline ceremony), skipping recompilation.
func (m *Manager) LoadKeys(r1cs frontend.CompiledConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.r1cs = r1cs
	m.pk = pk
	m.vk = vk
}

// VerifyingKey exposes the compiled verifying key, e.g. so the kernel
// can embed it without holding a reference to the full Manager.
func (m *Manager) VerifyingKey() (groth16.VerifyingKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.vk == nil {
		return nil, ErrCircuitNotCompiled
	}
	return m.vk, nil
}

// Prove builds a full witness from assignment and produces a groth16
// proof plus its serialized public witness, suitable for submission to
// the settlement kernel's Withdraw instruction.
func (m *Manager) Prove(assignment *WithdrawCircuit) (proof groth16.Proof, publicWitness []byte, err error) {
	m.mu.RLock()
	r1cs, pk := m.r1cs, m.pk
	m.mu.RUnlock()
	if r1cs == nil || pk == nil {
		return nil, nil, ErrCircuitNotCompiled
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, err
	}

	proof, err = groth16.Prove(r1cs, pk, witness)
	if err != nil {
		return nil, nil, errJoin(ErrProofGenerationFailed, err)
	}

	pub, err := witness.Public()
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if _, err := pub.WriteTo(&buf); err != nil {
		return nil, nil, err
	}

	return proof, buf.Bytes(), nil
}

// Verify checks proof against the serialized public witness produced
// by Prove (or reconstructed by the verifier from PublicInputs). This
// is the one call in the whole system that actually exercises
// groth16.Verify. In the kernel only the outputs_hash pre-check runs
// before it; the root-ring lookup and nullifier-shard lookup run after
// it. The relay's root and nullifier cache checks run at ingress,
// before a job ever reaches the kernel.
func (m *Manager) Verify(proof groth16.Proof, publicWitness []byte) error {
	m.mu.RLock()
	vk := m.vk
	m.mu.RUnlock()
	if vk == nil {
		return ErrCircuitNotCompiled
	}

	witness, err := newPublicWitness(publicWitness)
	if err != nil {
		return err
	}

	if err := groth16.Verify(proof, vk, witness); err != nil {
		return errJoin(ErrProofVerificationFailed, err)
	}
	return nil
}

func errJoin(sentinel, cause error) error {
	return errors.Join(sentinel, cause)
}

// EncodeProof serializes proof into the wire format the Withdraw
// instruction's 256-byte proof field carries.
func EncodeProof(proof groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeProof deserializes a wire-format groth16 proof, the shape the
// kernel receives inside a Withdraw instruction's 256-byte proof field.
func DecodeProof(b []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return proof, nil
}
