package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// InvoiceRecord mirrors the registry's getInvoice tuple. Field order and
// types must match the ABI for the tuple conversion to work.
type InvoiceRecord struct {
	InvoiceHash [32]byte
	Amount      *big.Int
	Token       common.Address
	Payer       common.Address
	Seller      common.Address
	DueDate     uint64
	Status      uint8
	CreatedAt   uint64
}

// InvoiceReader performs read calls against the invoice registry.
type InvoiceReader struct {
	contract *bind.BoundContract
}

func NewInvoiceReader(address common.Address, caller bind.ContractCaller) *InvoiceReader {
	return &InvoiceReader{
		contract: bind.NewBoundContract(address, invoiceNFTABI, caller, nil, nil),
	}
}

func (r *InvoiceReader) GetInvoice(ctx context.Context, tokenID *big.Int) (InvoiceRecord, error) {
	var out []interface{}
	err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getInvoice", tokenID)
	if err != nil {
		return InvoiceRecord{}, err
	}
	if len(out) != 1 {
		return InvoiceRecord{}, fmt.Errorf("getInvoice returned %d values", len(out))
	}
	record, ok := abi.ConvertType(out[0], new(InvoiceRecord)).(*InvoiceRecord)
	if !ok {
		return InvoiceRecord{}, fmt.Errorf("getInvoice returned unexpected type %T", out[0])
	}
	return *record, nil
}

func (r *InvoiceReader) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
