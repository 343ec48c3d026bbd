// Package contracts holds the ABI of the source chain lock bridge.
package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// LockBridgeMetaData describes the subset of the lock bridge contract used by the relayer.
var LockBridgeMetaData = &bind.MetaData{
	ABI: `[
	{"anonymous":false,"type":"event","name":"Locked","inputs":[
		{"indexed":true,"internalType":"address","name":"sender","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
		{"indexed":false,"internalType":"string","name":"destinationRecipient","type":"string"},
		{"indexed":true,"internalType":"uint256","name":"sequenceId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"Unlocked","inputs":[
		{"indexed":true,"internalType":"address","name":"recipient","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},
		{"indexed":true,"internalType":"bytes32","name":"burnId","type":"bytes32"}]},
	{"type":"function","name":"unlock","stateMutability":"nonpayable","inputs":[
		{"internalType":"address","name":"recipient","type":"address"},
		{"internalType":"uint256","name":"amount","type":"uint256"},
		{"internalType":"bytes32","name":"burnId","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"processedBurns","stateMutability":"view","inputs":[
		{"internalType":"bytes32","name":"","type":"bytes32"}],"outputs":[
		{"internalType":"bool","name":"","type":"bool"}]}
]`,
}

const (
	// EventLocked is emitted when a user locks funds for the destination chain
	EventLocked = "Locked"
	// EventUnlocked is emitted when the relayer releases funds for a destination burn
	EventUnlocked = "Unlocked"
	// MethodUnlock releases locked funds
	MethodUnlock = "unlock"
	// MethodProcessedBurns reports whether a burn id was already unlocked
	MethodProcessedBurns = "processedBurns"
)
