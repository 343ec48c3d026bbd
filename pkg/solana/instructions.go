package solana

import (
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// ataCreateIdempotent is the associated token program instruction that succeeds when the
// account already exists
const ataCreateIdempotent = 1

func createAssociatedTokenAccountIdempotent(payer, ata, owner, mint, tokenProgram PublicKey) solanago.Instruction {
	return solanago.NewInstruction(solanago.SPLAssociatedTokenAccountProgramID, solanago.AccountMetaSlice{
		solanago.Meta(payer).WRITE().SIGNER(),
		solanago.Meta(ata).WRITE(),
		solanago.Meta(owner),
		solanago.Meta(mint),
		solanago.Meta(solanago.SystemProgramID),
		solanago.Meta(tokenProgram),
	}, []byte{ataCreateIdempotent})
}

// mintTo builds an SPL mint_to. token-2022 shares the instruction layout, so the built
// instruction is re-addressed to tokenProgram.
func mintTo(tokenProgram, mint, destination, authority PublicKey, amount uint64) (solanago.Instruction, error) {
	ix, err := token.NewMintToInstruction(amount, mint, destination, authority, nil).ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	data, err := ix.Data()
	if err != nil {
		return nil, err
	}
	return solanago.NewInstruction(tokenProgram, ix.Accounts(), data), nil
}

func memo(program PublicKey, text string) solanago.Instruction {
	return solanago.NewInstruction(program, solanago.AccountMetaSlice{}, []byte(text))
}
