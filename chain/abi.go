package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const InvoiceNFTABI = `[
	{"type":"event","name":"InvoiceMinted","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"payer","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"dueDate","type":"uint64","indexed":false},
		{"name":"invoiceHash","type":"bytes32","indexed":false}]},
	{"type":"event","name":"ApprovalRequested","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"payer","type":"address","indexed":true}]},
	{"type":"event","name":"InvoiceApproved","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"payer","type":"address","indexed":true}]},
	{"type":"event","name":"InvoiceDisputed","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"payer","type":"address","indexed":true}]},
	{"type":"event","name":"DisputeResolved","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"approved","type":"bool","indexed":false}]},
	{"type":"event","name":"StatusChanged","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"oldStatus","type":"uint8","indexed":false},
		{"name":"newStatus","type":"uint8","indexed":false}]},
	{"type":"function","name":"getInvoice","stateMutability":"view",
		"inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[{"name":"","type":"tuple","components":[
			{"name":"invoiceHash","type":"bytes32"},
			{"name":"amount","type":"uint256"},
			{"name":"token","type":"address"},
			{"name":"payer","type":"address"},
			{"name":"seller","type":"address"},
			{"name":"dueDate","type":"uint64"},
			{"name":"status","type":"uint8"},
			{"name":"createdAt","type":"uint64"}]}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
		"inputs":[{"name":"tokenId","type":"uint256"}],
		"outputs":[{"name":"","type":"address"}]}
]`

const InvoiceEscrowABI = `[
	{"type":"event","name":"InvoicePaid","anonymous":false,"inputs":[
		{"name":"invoiceId","type":"uint256","indexed":true},
		{"name":"payer","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"protocolFee","type":"uint256","indexed":false},
		{"name":"researchFee","type":"uint256","indexed":false}]}
]`

const InvoiceMarketplaceABI = `[
	{"type":"event","name":"InvoiceListed","anonymous":false,"inputs":[
		{"name":"invoiceId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"salePrice","type":"uint256","indexed":false},
		{"name":"paymentToken","type":"address","indexed":false},
		{"name":"expiry","type":"uint64","indexed":false}]},
	{"type":"event","name":"InvoiceSold","anonymous":false,"inputs":[
		{"name":"invoiceId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"buyer","type":"address","indexed":true},
		{"name":"salePrice","type":"uint256","indexed":false},
		{"name":"fee","type":"uint256","indexed":false}]},
	{"type":"event","name":"ListingCancelled","anonymous":false,"inputs":[
		{"name":"invoiceId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true}]}
]`

var (
	invoiceNFTABI         = mustParseABI(InvoiceNFTABI)
	invoiceEscrowABI      = mustParseABI(InvoiceEscrowABI)
	invoiceMarketplaceABI = mustParseABI(InvoiceMarketplaceABI)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}
