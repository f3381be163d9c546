package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type EventKind string

const (
	EventInvoiceMinted     EventKind = "InvoiceMinted"
	EventApprovalRequested EventKind = "ApprovalRequested"
	EventInvoiceApproved   EventKind = "InvoiceApproved"
	EventInvoiceDisputed   EventKind = "InvoiceDisputed"
	EventDisputeResolved   EventKind = "DisputeResolved"
	EventStatusChanged     EventKind = "StatusChanged"
	EventInvoicePaid       EventKind = "InvoicePaid"
	EventInvoiceListed     EventKind = "InvoiceListed"
	EventInvoiceSold       EventKind = "InvoiceSold"
	EventListingCancelled  EventKind = "ListingCancelled"
)

var ErrUnknownEvent = errors.New("unknown event signature")

// Event is a decoded contract log.
type Event interface {
	Kind() EventKind
	Log() types.Log
}

type InvoiceMinted struct {
	TokenId     *big.Int
	Seller      common.Address
	Payer       common.Address
	Amount      *big.Int
	Token       common.Address
	DueDate     uint64
	InvoiceHash [32]byte
	Raw         types.Log
}

type ApprovalRequested struct {
	TokenId *big.Int
	Payer   common.Address
	Raw     types.Log
}

type InvoiceApproved struct {
	TokenId *big.Int
	Payer   common.Address
	Raw     types.Log
}

type InvoiceDisputed struct {
	TokenId *big.Int
	Payer   common.Address
	Raw     types.Log
}

type DisputeResolved struct {
	TokenId  *big.Int
	Approved bool
	Raw      types.Log
}

type StatusChanged struct {
	TokenId   *big.Int
	OldStatus uint8
	NewStatus uint8
	Raw       types.Log
}

type InvoicePaid struct {
	InvoiceId   *big.Int
	Payer       common.Address
	Recipient   common.Address
	Amount      *big.Int
	ProtocolFee *big.Int
	ResearchFee *big.Int
	Raw         types.Log
}

type InvoiceListed struct {
	InvoiceId    *big.Int
	Seller       common.Address
	SalePrice    *big.Int
	PaymentToken common.Address
	Expiry       uint64
	Raw          types.Log
}

type InvoiceSold struct {
	InvoiceId *big.Int
	Seller    common.Address
	Buyer     common.Address
	SalePrice *big.Int
	Fee       *big.Int
	Raw       types.Log
}

type ListingCancelled struct {
	InvoiceId *big.Int
	Seller    common.Address
	Raw       types.Log
}

func (e *InvoiceMinted) Kind() EventKind     { return EventInvoiceMinted }
func (e *ApprovalRequested) Kind() EventKind { return EventApprovalRequested }
func (e *InvoiceApproved) Kind() EventKind   { return EventInvoiceApproved }
func (e *InvoiceDisputed) Kind() EventKind   { return EventInvoiceDisputed }
func (e *DisputeResolved) Kind() EventKind   { return EventDisputeResolved }
func (e *StatusChanged) Kind() EventKind     { return EventStatusChanged }
func (e *InvoicePaid) Kind() EventKind       { return EventInvoicePaid }
func (e *InvoiceListed) Kind() EventKind     { return EventInvoiceListed }
func (e *InvoiceSold) Kind() EventKind       { return EventInvoiceSold }
func (e *ListingCancelled) Kind() EventKind  { return EventListingCancelled }

func (e *InvoiceMinted) Log() types.Log     { return e.Raw }
func (e *ApprovalRequested) Log() types.Log { return e.Raw }
func (e *InvoiceApproved) Log() types.Log   { return e.Raw }
func (e *InvoiceDisputed) Log() types.Log   { return e.Raw }
func (e *DisputeResolved) Log() types.Log   { return e.Raw }
func (e *StatusChanged) Log() types.Log     { return e.Raw }
func (e *InvoicePaid) Log() types.Log       { return e.Raw }
func (e *InvoiceListed) Log() types.Log     { return e.Raw }
func (e *InvoiceSold) Log() types.Log       { return e.Raw }
func (e *ListingCancelled) Log() types.Log  { return e.Raw }

// Group is one contract's event subscription.
type Group string

const (
	GroupRegistry    Group = "registry"
	GroupEscrow      Group = "escrow"
	GroupMarketplace Group = "marketplace"
)

type eventBinding struct {
	kind     EventKind
	contract *bind.BoundContract
	newEvent func() Event
}

// Decoder turns raw logs of the three contracts into typed events, keyed by topic0.
type Decoder struct {
	bindings map[common.Hash]eventBinding
}

func NewDecoder() *Decoder {
	d := &Decoder{bindings: map[common.Hash]eventBinding{}}
	d.register(invoiceNFTABI, EventInvoiceMinted, func() Event { return new(InvoiceMinted) })
	d.register(invoiceNFTABI, EventApprovalRequested, func() Event { return new(ApprovalRequested) })
	d.register(invoiceNFTABI, EventInvoiceApproved, func() Event { return new(InvoiceApproved) })
	d.register(invoiceNFTABI, EventInvoiceDisputed, func() Event { return new(InvoiceDisputed) })
	d.register(invoiceNFTABI, EventDisputeResolved, func() Event { return new(DisputeResolved) })
	d.register(invoiceNFTABI, EventStatusChanged, func() Event { return new(StatusChanged) })
	d.register(invoiceEscrowABI, EventInvoicePaid, func() Event { return new(InvoicePaid) })
	d.register(invoiceMarketplaceABI, EventInvoiceListed, func() Event { return new(InvoiceListed) })
	d.register(invoiceMarketplaceABI, EventInvoiceSold, func() Event { return new(InvoiceSold) })
	d.register(invoiceMarketplaceABI, EventListingCancelled, func() Event { return new(ListingCancelled) })
	return d
}

func (d *Decoder) register(contractABI abi.ABI, kind EventKind, newEvent func() Event) {
	// the address is irrelevant for unpacking
	contract := bind.NewBoundContract(common.Address{}, contractABI, nil, nil, nil)
	d.bindings[contractABI.Events[string(kind)].ID] = eventBinding{kind: kind, contract: contract, newEvent: newEvent}
}

func (d *Decoder) Decode(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	binding, ok := d.bindings[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, log.Topics[0].Hex())
	}
	event := binding.newEvent()
	if err := binding.contract.UnpackLog(event, string(binding.kind), log); err != nil {
		return nil, fmt.Errorf("unpacking %s log in tx %s: %w", binding.kind, log.TxHash.Hex(), err)
	}
	setRaw(event, log)
	return event, nil
}

func setRaw(event Event, log types.Log) {
	switch e := event.(type) {
	case *InvoiceMinted:
		e.Raw = log
	case *ApprovalRequested:
		e.Raw = log
	case *InvoiceApproved:
		e.Raw = log
	case *InvoiceDisputed:
		e.Raw = log
	case *DisputeResolved:
		e.Raw = log
	case *StatusChanged:
		e.Raw = log
	case *InvoicePaid:
		e.Raw = log
	case *InvoiceListed:
		e.Raw = log
	case *InvoiceSold:
		e.Raw = log
	case *ListingCancelled:
		e.Raw = log
	}
}

// Topics returns the topic0 filter for a contract group.
func Topics(group Group) []common.Hash {
	var (
		contractABI abi.ABI
		kinds       []EventKind
	)
	switch group {
	case GroupRegistry:
		contractABI = invoiceNFTABI
		kinds = []EventKind{EventInvoiceMinted, EventApprovalRequested, EventInvoiceApproved, EventInvoiceDisputed, EventDisputeResolved, EventStatusChanged}
	case GroupEscrow:
		contractABI = invoiceEscrowABI
		kinds = []EventKind{EventInvoicePaid}
	case GroupMarketplace:
		contractABI = invoiceMarketplaceABI
		kinds = []EventKind{EventInvoiceListed, EventInvoiceSold, EventListingCancelled}
	}
	topics := make([]common.Hash, 0, len(kinds))
	for _, kind := range kinds {
		topics = append(topics, contractABI.Events[string(kind)].ID)
	}
	return topics
}
