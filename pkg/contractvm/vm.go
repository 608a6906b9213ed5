// Package contractvm defines the capability-set collaborator the
// executor invokes for InvokeContract/DeployContract payloads (spec §9
// "Contract VM"). No assumption is made about the VM's language or
// runtime; this package only pins the contract the executor calls
// against and ships no implementation of it.
package contractvm

import "github.com/terminos-network/terminos/internal/core/transaction"

// Transfer is a contract-emitted balance movement, recorded into the
// executor's execution log and applied after the invocation completes
// (spec §4.4 "Contract-emitted transfers and events are recorded into
// the execution log and applied at the end of the transaction").
type Transfer struct {
	From   [32]byte
	To     [32]byte
	Asset  transaction.AssetID
	Amount uint64
}

// Event is an arbitrary contract-emitted log entry.
type Event struct {
	ID   uint32
	Data []byte
}

// Result is what one Execute call returns to the executor.
type Result struct {
	Outputs   []byte
	GasUsed   uint64
	Transfers []Transfer
	Events    []Event
}

// VM is the module-execution collaborator (spec §9): {load_module(hash),
// execute(module, chunk_id, params, gas_limit) -> outputs+gas_used}.
// Contract-emitted transfers and events are not separate methods; they
// come back in Execute's Result.
type VM interface {
	// LoadModule returns the deployed bytecode for contract, or an error
	// if no module is deployed under that hash.
	LoadModule(contract [32]byte) ([]byte, error)

	// Execute runs chunkID of module with params, charging against
	// gasLimit. A non-nil error means the VM itself failed (out of gas,
	// trap, malformed module); per spec §4.4 the transaction's only
	// side-effect in that case is the nonce bump and fee/gas already
	// consumed; Execute's returned GasUsed (if any) is still charged.
	Execute(module []byte, chunkID uint16, params []byte, gasLimit uint64) (Result, error)
}
