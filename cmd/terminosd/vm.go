package main

import (
	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/pkg/contractvm"
)

// noopVM is the contract-execution collaborator this daemon wires by
// default. Contract-VM internals are explicitly out of scope; this
// stub only needs to exist so internal/executor has something
// satisfying contractvm.VM to run against, rejecting every contract
// invocation cleanly instead of leaving the field nil.
type noopVM struct{}

func (noopVM) LoadModule(contract [32]byte) ([]byte, error) {
	return nil, errors.New("terminosd: contract VM not implemented in this build")
}

func (noopVM) Execute(module []byte, chunkID uint16, params []byte, gasLimit uint64) (contractvm.Result, error) {
	return contractvm.Result{}, errors.New("terminosd: contract VM not implemented in this build")
}
