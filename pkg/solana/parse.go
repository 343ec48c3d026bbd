package solana

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	programSPLToken     = "spl-token"
	programSPLToken2022 = "spl-token-2022"
	programSPLMemo      = "spl-memo"
)

type locatedInstruction struct {
	key string
	ix  *ParsedInstruction
}

// instructions flattens top-level and inner instructions keeping their position
func instructions(tx *TransactionResult) []locatedInstruction {
	var out []locatedInstruction
	top := tx.Transaction.Message.Instructions
	inner := map[int][]ParsedInstruction{}
	if tx.Meta != nil {
		for _, in := range tx.Meta.InnerInstructions {
			inner[in.Index] = in.Instructions
		}
	}
	for i := range top {
		out = append(out, locatedInstruction{key: strconv.Itoa(i), ix: &top[i]})
		children := inner[i]
		for j := range children {
			out = append(out, locatedInstruction{key: fmt.Sprintf("%d.%d", i, j), ix: &children[j]})
		}
	}
	return out
}

// Memos returns the text of every spl-memo instruction in the transaction
func Memos(tx *TransactionResult) []string {
	var memos []string
	for _, li := range instructions(tx) {
		if li.ix.Program != programSPLMemo || !isSet(li.ix.Parsed) {
			continue
		}
		var text string
		if err := json.Unmarshal(li.ix.Parsed, &text); err == nil {
			memos = append(memos, text)
		}
	}
	return memos
}

func parseToken(ix *ParsedInstruction) (*tokenInstruction, bool) {
	if ix.Program != programSPLToken && ix.Program != programSPLToken2022 {
		return nil, false
	}
	if !isSet(ix.Parsed) {
		return nil, false
	}
	var ti tokenInstruction
	if err := json.Unmarshal(ix.Parsed, &ti); err != nil {
		return nil, false
	}
	return &ti, true
}

func (ti *tokenInstruction) amount() (uint64, error) {
	raw := ti.Info.Amount
	if raw == "" && ti.Info.TokenAmount != nil {
		raw = ti.Info.TokenAmount.Amount
	}
	return strconv.ParseUint(raw, 10, 64)
}

// ParseBurns extracts burns of mint from a successful transaction. The first memo of the
// transaction is taken as the source chain recipient of every burn in it.
func ParseBurns(tx *TransactionResult, mint PublicKey) ([]*BurnEvent, error) {
	if tx == nil || (tx.Meta != nil && isSet(tx.Meta.Err)) || len(tx.Transaction.Signatures) == 0 {
		return nil, nil
	}
	sig := tx.Transaction.Signatures[0]

	memo := ""
	if memos := Memos(tx); len(memos) > 0 {
		memo = memos[0]
	}

	var burns []*BurnEvent
	for _, li := range instructions(tx) {
		ti, ok := parseToken(li.ix)
		if !ok || (ti.Type != "burn" && ti.Type != "burnChecked") || ti.Info.Mint != mint.String() {
			continue
		}
		amount, err := ti.amount()
		if err != nil {
			return nil, fmt.Errorf("invalid burn amount in %s:%s: %w", sig, li.key, err)
		}
		burns = append(burns, &BurnEvent{
			Signature:      sig,
			InstructionKey: li.key,
			Slot:           tx.Slot,
			Owner:          ti.Info.Authority,
			TokenAccount:   ti.Info.Account,
			Amount:         amount,
			Memo:           memo,
		})
	}
	return burns, nil
}

// ParseMints extracts mints of mint into account from a successful transaction
func ParseMints(tx *TransactionResult, mint, account PublicKey) ([]*MintRecord, error) {
	if tx == nil || (tx.Meta != nil && isSet(tx.Meta.Err)) || len(tx.Transaction.Signatures) == 0 {
		return nil, nil
	}
	sig := tx.Transaction.Signatures[0]
	memos := Memos(tx)

	var mints []*MintRecord
	for _, li := range instructions(tx) {
		ti, ok := parseToken(li.ix)
		if !ok || (ti.Type != "mintTo" && ti.Type != "mintToChecked") {
			continue
		}
		if ti.Info.Mint != mint.String() || ti.Info.Account != account.String() {
			continue
		}
		amount, err := ti.amount()
		if err != nil {
			return nil, fmt.Errorf("invalid mint amount in %s:%s: %w", sig, li.key, err)
		}
		mints = append(mints, &MintRecord{
			Signature: sig,
			Slot:      tx.Slot,
			Account:   ti.Info.Account,
			Amount:    amount,
			Memos:     memos,
		})
	}
	return mints, nil
}
