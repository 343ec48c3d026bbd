package solana

import (
	"encoding/json"
)

// MintInfo is the parsed state of an SPL mint
type MintInfo struct {
	Address       PublicKey
	TokenProgram  PublicKey
	Decimals      uint8
	MintAuthority string
	Supply        string
	IsInitialized bool
}

type parsedMintData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Decimals      uint8   `json:"decimals"`
			MintAuthority *string `json:"mintAuthority"`
			Supply        string  `json:"supply"`
			IsInitialized bool    `json:"isInitialized"`
		} `json:"info"`
	} `json:"parsed"`
}

// TransactionResult is a jsonParsed transaction returned by getTransaction
type TransactionResult struct {
	Slot        uint64            `json:"slot"`
	BlockTime   *int64            `json:"blockTime"`
	Meta        *TransactionMeta  `json:"meta"`
	Transaction ParsedTransaction `json:"transaction"`
}

// TransactionMeta holds execution status
type TransactionMeta struct {
	Err               json.RawMessage    `json:"err"`
	Fee               uint64             `json:"fee"`
	InnerInstructions []InnerInstruction `json:"innerInstructions"`
	LogMessages       []string           `json:"logMessages"`
}

// InnerInstruction lists instructions invoked by top-level instruction Index
type InnerInstruction struct {
	Index        int                 `json:"index"`
	Instructions []ParsedInstruction `json:"instructions"`
}

// ParsedTransaction is the transaction body in jsonParsed encoding
type ParsedTransaction struct {
	Signatures []string `json:"signatures"`
	Message    struct {
		AccountKeys []struct {
			Pubkey   string `json:"pubkey"`
			Signer   bool   `json:"signer"`
			Writable bool   `json:"writable"`
		} `json:"accountKeys"`
		Instructions    []ParsedInstruction `json:"instructions"`
		RecentBlockhash string              `json:"recentBlockhash"`
	} `json:"message"`
}

// ParsedInstruction is either a parsed instruction (Program and Parsed set) or a raw one
type ParsedInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
	Accounts  []string        `json:"accounts"`
	Data      string          `json:"data"`
}

// tokenInstruction is the parsed form of spl-token instructions
type tokenInstruction struct {
	Type string `json:"type"`
	Info struct {
		Account       string       `json:"account"`
		Mint          string       `json:"mint"`
		Authority     string       `json:"authority"`
		MintAuthority string       `json:"mintAuthority"`
		Amount        string       `json:"amount"`
		TokenAmount   *tokenAmount `json:"tokenAmount"`
	} `json:"info"`
}

type tokenAmount struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// BurnEvent is an SPL burn of the bridged mint that requests an unlock on the source chain
type BurnEvent struct {
	Signature string
	// InstructionKey is "<top-level index>" or "<top-level index>.<inner index>"
	InstructionKey string
	Slot           uint64
	Owner          string
	TokenAccount   string
	Amount         uint64
	Memo           string
}

// EventKey uniquely identifies the burn
func (b *BurnEvent) EventKey() string {
	return b.Signature + ":" + b.InstructionKey
}

// MintRecord is a mint of the bridged token found in an account's history
type MintRecord struct {
	Signature string
	Slot      uint64
	Account   string
	Amount    uint64
	Memos     []string
}

// TxStatus is the observed state of a submitted transaction
type TxStatus int

const (
	// TxPending means the signature is unknown or not yet at the required commitment
	TxPending TxStatus = iota
	// TxConfirmed means the transaction succeeded at the required commitment
	TxConfirmed
	// TxFailed means the transaction was included and failed
	TxFailed
	// TxExpired means the blockhash expired without the transaction landing
	TxExpired
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	case TxExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func isSet(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
