package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

// VerifyRequest описывает шаг, который должна доказать транзакция.
type VerifyRequest struct {
	Action        entity.Action
	GigID         uuid.UUID
	EscrowAddress string
	Signer        string
}

// VerifiedAction отражает то, что транзакция сделала по данным сети.
// Amount и Fee заполняются только для create_escrow.
type VerifiedAction struct {
	Instruction string
	Amount      uint64
	Fee         uint64
}

// VerifyAction требует, чтобы транзакция была подписана кошельком Signer и
// содержала инструкцию программы для req.Action по эскроу req.GigID.
func (c *Client) VerifyAction(ctx context.Context, signature string, req VerifyRequest) (*VerifiedAction, error) {
	name, ok := actionInstructions[req.Action]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "операция не подтверждается транзакцией")
	}
	escrow, err := solana.PublicKeyFromBase58(req.EscrowAddress)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "некорректный адрес эскроу")
	}
	signer, err := solana.PublicKeyFromBase58(req.Signer)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный кошелёк исполнителя")
	}

	tx, keys, err := c.fetchTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if !signedBy(tx, signer) {
		return nil, apperror.New(apperror.ErrCodeValidation, "транзакция подписана не кошельком исполнителя операции")
	}

	disc := discriminator(name)
	gigID := [16]byte(req.GigID)
	for _, ix := range tx.Message.Instructions {
		if !keyAt(keys, ix.ProgramIDIndex).Equals(c.programID) {
			continue
		}
		data := []byte(ix.Data)
		if len(data) < len(disc)+len(gigID) ||
			!bytes.Equal(data[:8], disc[:]) ||
			!bytes.Equal(data[8:24], gigID[:]) {
			continue
		}
		if len(ix.Accounts) == 0 || !keyAt(keys, ix.Accounts[0]).Equals(escrow) {
			continue
		}

		out := &VerifiedAction{Instruction: name}
		if req.Action == entity.ActionPublish {
			var args createEscrowArgs
			if err := bin.NewBorshDecoder(data[8:]).Decode(&args); err != nil {
				continue
			}
			out.Amount, out.Fee = args.Amount, args.Fee
		}
		return out, nil
	}
	return nil, apperror.New(apperror.ErrCodeValidation,
		fmt.Sprintf("транзакция не содержит %s для эскроу этого задания", name))
}

func (c *Client) fetchTransaction(ctx context.Context, signature string) (*solana.Transaction, solana.PublicKeySlice, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, nil, err
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil, apperror.ErrChainUnconfirmed
	}
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "узел сети не вернул транзакцию")
	}
	if out == nil || out.Transaction == nil {
		return nil, nil, apperror.ErrChainUnconfirmed
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось разобрать транзакцию")
	}

	// Индексы инструкций идут по статическим ключам, затем по загруженным из lookup-таблиц.
	keys := append(solana.PublicKeySlice{}, tx.Message.AccountKeys...)
	if out.Meta != nil {
		keys = append(keys, out.Meta.LoadedAddresses.Writable...)
		keys = append(keys, out.Meta.LoadedAddresses.ReadOnly...)
	}
	return tx, keys, nil
}

// signedBy ищет кошелёк среди подписантов, то есть первых NumRequiredSignatures статических ключей.
func signedBy(tx *solana.Transaction, wallet solana.PublicKey) bool {
	n := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(wallet) {
			return true
		}
	}
	return false
}

func keyAt(keys solana.PublicKeySlice, idx uint16) solana.PublicKey {
	if int(idx) >= len(keys) {
		return solana.PublicKey{}
	}
	return keys[idx]
}
