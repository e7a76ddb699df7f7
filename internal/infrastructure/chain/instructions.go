package chain

import (
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
)

// Имена инструкций программы эскроу.
const (
	ixInitUser       = "init_user"
	ixCreateEscrow   = "create_escrow"
	ixAcceptGig      = "accept_gig"
	ixSubmitProof    = "submit_proof"
	ixApproveRelease = "approve_release"
	ixCancelEscrow   = "cancel_escrow"
	ixClaimRefund    = "claim_refund"
	ixOpenDispute    = "open_dispute"
	ixResolveDispute = "resolve_dispute"
)

// actionInstructions сопоставляет операции с инструкциями программы.
var actionInstructions = map[entity.Action]string{
	entity.ActionPublish: ixCreateEscrow,
	entity.ActionAccept:  ixAcceptGig,
	entity.ActionSubmit:  ixSubmitProof,
	entity.ActionApprove: ixApproveRelease,
	entity.ActionCancel:  ixCancelEscrow,
	entity.ActionRefund:  ixClaimRefund,
	entity.ActionDispute: ixOpenDispute,
	entity.ActionResolve: ixResolveDispute,
}

// discriminator берёт первые 8 байт sha256("global:<имя>"), как в Anchor.
func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

func encodeData(name string, args interface{}) ([]byte, error) {
	d := discriminator(name)
	if args == nil {
		return d[:], nil
	}
	payload, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("chain: borsh %s: %w", name, err)
	}
	return append(d[:], payload...), nil
}

type gigArgs struct {
	GigID [16]byte
}

type createEscrowArgs struct {
	GigID  [16]byte
	Amount uint64
	Fee    uint64
}

type submitProofArgs struct {
	GigID     [16]byte
	ProofHash [32]byte
}

type resolveDisputeArgs struct {
	GigID  [16]byte
	Winner uint8
}

// BuildRequest содержит всё нужное для сборки инструкций одной операции.
type BuildRequest struct {
	Action         entity.Action
	GigID          uuid.UUID
	Payer          string
	PosterWallet   string
	WorkerWallet   string
	AmountLamports uint64
	FeeLamports    uint64
	ProofHash      [32]byte
	Winner         entity.DisputeWinner
}

type accounts struct {
	program solana.PublicKey
	escrow  solana.PublicKey
	config  solana.PublicKey
	payer   solana.PublicKey
	poster  solana.PublicKey
	worker  solana.PublicKey
}

func (c *Client) resolveAccounts(req BuildRequest) (accounts, error) {
	acc := accounts{program: c.programID}
	var err error
	if acc.escrow, err = EscrowAddress(c.programID, req.GigID); err != nil {
		return acc, fmt.Errorf("chain: escrow pda: %w", err)
	}
	if acc.config, err = ConfigAddress(c.programID); err != nil {
		return acc, fmt.Errorf("chain: config pda: %w", err)
	}
	if acc.payer, err = solana.PublicKeyFromBase58(req.Payer); err != nil {
		return acc, fmt.Errorf("chain: payer wallet: %w", err)
	}
	if req.PosterWallet != "" {
		if acc.poster, err = solana.PublicKeyFromBase58(req.PosterWallet); err != nil {
			return acc, fmt.Errorf("chain: poster wallet: %w", err)
		}
	}
	if req.WorkerWallet != "" {
		if acc.worker, err = solana.PublicKeyFromBase58(req.WorkerWallet); err != nil {
			return acc, fmt.Errorf("chain: worker wallet: %w", err)
		}
	}
	return acc, nil
}

func initUserInstruction(program, wallet solana.PublicKey) (solana.Instruction, error) {
	userAcc, err := UserAccountAddress(program, wallet)
	if err != nil {
		return nil, fmt.Errorf("chain: user pda: %w", err)
	}
	data, err := encodeData(ixInitUser, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.Meta(userAcc).WRITE(),
		solana.Meta(wallet).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// actionInstruction собирает основную инструкцию операции.
func actionInstruction(req BuildRequest, acc accounts) (solana.Instruction, error) {
	gigID := [16]byte(req.GigID)

	name, ok := actionInstructions[req.Action]
	if !ok {
		return nil, fmt.Errorf("chain: операция %q не связана с программой", req.Action)
	}

	var (
		args  interface{}
		metas solana.AccountMetaSlice
	)

	switch req.Action {
	case entity.ActionPublish:
		userAcc, err := UserAccountAddress(acc.program, acc.payer)
		if err != nil {
			return nil, err
		}
		args = createEscrowArgs{GigID: gigID, Amount: req.AmountLamports, Fee: req.FeeLamports}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).WRITE().SIGNER(),
			solana.Meta(userAcc),
			solana.Meta(acc.config),
			solana.Meta(solana.SystemProgramID),
		}
	case entity.ActionAccept:
		userAcc, err := UserAccountAddress(acc.program, acc.payer)
		if err != nil {
			return nil, err
		}
		args = gigArgs{GigID: gigID}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).SIGNER(),
			solana.Meta(userAcc),
		}
	case entity.ActionSubmit:
		args = submitProofArgs{GigID: gigID, ProofHash: req.ProofHash}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).SIGNER(),
		}
	case entity.ActionApprove:
		args = gigArgs{GigID: gigID}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).WRITE().SIGNER(),
			solana.Meta(acc.worker).WRITE(),
			solana.Meta(acc.config),
		}
	case entity.ActionCancel:
		args = gigArgs{GigID: gigID}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).WRITE().SIGNER(),
		}
	case entity.ActionRefund:
		args = gigArgs{GigID: gigID}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).WRITE().SIGNER(),
		}
	case entity.ActionDispute:
		args = gigArgs{GigID: gigID}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).SIGNER(),
		}
	case entity.ActionResolve:
		var winner uint8
		if req.Winner == entity.DisputeWinnerWorker {
			winner = 1
		}
		args = resolveDisputeArgs{GigID: gigID, Winner: winner}
		metas = solana.AccountMetaSlice{
			solana.Meta(acc.escrow).WRITE(),
			solana.Meta(acc.payer).SIGNER(),
			solana.Meta(acc.poster).WRITE(),
			solana.Meta(acc.worker).WRITE(),
			solana.Meta(acc.config),
		}
	}

	data, err := encodeData(name, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(acc.program, metas, data), nil
}
