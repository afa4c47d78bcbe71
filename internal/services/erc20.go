package services

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	transferSelector  = selector("transfer(address,uint256)") // 0xa9059cbb
	balanceOfSelector = selector("balanceOf(address)")        // 0x70a08231
)

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EncodeTransfer builds ERC-20 transfer(to, amount) calldata.
func EncodeTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// EncodeBalanceOf builds ERC-20 balanceOf(owner) calldata.
func EncodeBalanceOf(owner common.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// DecodeUint256 parses a 0x-prefixed eth_call result.
func DecodeUint256(result string) (*big.Int, error) {
	raw, err := hexutil.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("decode call result %q: %w", result, err)
	}
	if len(raw) > 32 {
		raw = raw[:32]
	}
	return new(big.Int).SetBytes(raw), nil
}

// ToBaseUnits scales a human amount (e.g. 100 tokens) to the token's smallest unit.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -decimals)
}
