package program

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// InstructionKind names a program instruction.
type InstructionKind string

const (
	KindCreate   InstructionKind = "create"
	KindDonate   InstructionKind = "donate"
	KindWithdraw InstructionKind = "withdraw"
)

// ErrUnknownInstruction is returned when instruction data carries an unknown discriminator.
var ErrUnknownInstruction = errors.New("unknown instruction")

// Instruction is the decoded form of a program instruction's data.
type Instruction struct {
	Kind        InstructionKind
	Name        string
	Description string
	Amount      uint64
}

// NewCreateInstruction opens the campaign account derived for user.
func NewCreateInstruction(programID, campaign, user solana.PublicKey, name, description string) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(createDiscriminator[:])
	enc := bin.NewBorshEncoder(buf)
	if err := enc.Encode(name); err != nil {
		return nil, err
	}
	if err := enc.Encode(description); err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(campaign, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, buf.Bytes()), nil
}

// NewDonateInstruction transfers amount lamports from user into campaign.
func NewDonateInstruction(programID, campaign, user solana.PublicKey, amount uint64) (solana.Instruction, error) {
	data, err := amountData(donateDiscriminator, amount)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(campaign, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// NewWithdrawInstruction moves amount lamports from campaign back to its admin.
func NewWithdrawInstruction(programID, campaign, user solana.PublicKey, amount uint64) (solana.Instruction, error) {
	data, err := amountData(withdrawDiscriminator, amount)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(campaign, true, false),
		solana.NewAccountMeta(user, true, true),
	}, data), nil
}

func amountData(d discriminator, amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(amount); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInstruction parses instruction data produced by the builders above.
func DecodeInstruction(data []byte) (Instruction, error) {
	var ix Instruction
	if len(data) < 8 {
		return ix, fmt.Errorf("instruction data: %d bytes is too short", len(data))
	}
	var d discriminator
	copy(d[:], data[:8])
	dec := bin.NewBorshDecoder(data[8:])
	switch d {
	case createDiscriminator:
		ix.Kind = KindCreate
		if err := dec.Decode(&ix.Name); err != nil {
			return ix, fmt.Errorf("create name: %w", err)
		}
		if err := dec.Decode(&ix.Description); err != nil {
			return ix, fmt.Errorf("create description: %w", err)
		}
	case donateDiscriminator:
		ix.Kind = KindDonate
		if err := dec.Decode(&ix.Amount); err != nil {
			return ix, fmt.Errorf("donate amount: %w", err)
		}
	case withdrawDiscriminator:
		ix.Kind = KindWithdraw
		if err := dec.Decode(&ix.Amount); err != nil {
			return ix, fmt.Errorf("withdraw amount: %w", err)
		}
	default:
		return ix, ErrUnknownInstruction
	}
	return ix, nil
}
