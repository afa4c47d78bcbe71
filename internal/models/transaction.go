package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxRequest is the eth_sendTransaction parameter object.
type TxRequest struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data,omitempty"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Gas   hexutil.Uint64 `json:"gas"`
}

// CallRequest is the eth_call parameter object.
type CallRequest struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}
