package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LockEvent is a decoded Locked log from the bridge contract
type LockEvent struct {
	Sender      common.Address
	Amount      *big.Int
	Recipient   string
	SequenceID  *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// TxStatus is the observed state of a submitted transaction
type TxStatus int

const (
	// TxPending means the transaction is known but not yet mined
	TxPending TxStatus = iota
	// TxConfirmed means the transaction was mined and succeeded
	TxConfirmed
	// TxReverted means the transaction was mined and reverted
	TxReverted
	// TxDropped means the transaction can no longer be mined
	TxDropped
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	case TxDropped:
		return "dropped"
	default:
		return "unknown"
	}
}
